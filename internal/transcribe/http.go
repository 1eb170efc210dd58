package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/MizukiMachine/discord-VC-minutes/internal/audio"
)

// httpGateway talks to a self-hosted transcription server that accepts a
// multipart audio upload on POST /transcribe and responds with JSON segments.
type httpGateway struct {
	baseURL  string
	model    string
	language string
	client   *http.Client
}

type httpSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type httpResponse struct {
	Segments []httpSegment `json:"segments"`
	Text     string        `json:"text"`
}

func newHTTPGateway(opts Options) (*httpGateway, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("http transcription provider requires a base URL")
	}
	return &httpGateway{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		model:    opts.Model,
		language: opts.Language,
		client:   &http.Client{},
	}, nil
}

func (g *httpGateway) Transcribe(ctx context.Context, chunk audio.Chunk) ([]Segment, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("%w: build upload: %v", ErrPermanent, err)
	}
	if _, err := part.Write(chunk.Payload); err != nil {
		return nil, fmt.Errorf("%w: write upload: %v", ErrPermanent, err)
	}
	if g.language != "" {
		_ = mw.WriteField("language", g.language)
	}
	if g.model != "" {
		_ = mw.WriteField("model", g.model)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%w: finish upload: %v", ErrPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transcribe", &body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, classifyStatus(resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var decoded httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode backend response: %v", ErrTransient, err)
	}

	var segments []Segment
	for _, s := range decoded.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, segmentFromRelative(chunk, s.Start, s.End, text, s.Confidence))
	}
	if len(segments) == 0 {
		if text := strings.TrimSpace(decoded.Text); text != "" {
			segments = append(segments, segmentFromRelative(chunk, 0, chunk.Duration().Seconds(), text, 0))
		}
	}
	return segments, nil
}
