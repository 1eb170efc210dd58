package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	listenapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	dginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/MizukiMachine/discord-VC-minutes/internal/audio"
)

// deepgramGateway runs batch transcription against Deepgram's prerecorded
// REST API with utterance splitting enabled.
type deepgramGateway struct {
	client   *listenapi.Client
	model    string
	language string
}

func newDeepgramGateway(opts Options) *deepgramGateway {
	clientOpts := &dginterfaces.ClientOptions{}
	if opts.BaseURL != "" {
		clientOpts.Host = opts.BaseURL
	}

	model := opts.Model
	if model == "" {
		model = "nova-2"
	}
	language := opts.Language
	if language == "" {
		language = "en-US"
	}

	rest := listen.NewREST(opts.APIKey, clientOpts)
	return &deepgramGateway{
		client:   listenapi.New(rest),
		model:    model,
		language: language,
	}
}

func (g *deepgramGateway) Transcribe(ctx context.Context, chunk audio.Chunk) ([]Segment, error) {
	options := &dginterfaces.PreRecordedTranscriptionOptions{
		Model:       g.model,
		Language:    g.language,
		Punctuate:   true,
		SmartFormat: true,
		Utterances:  true,
	}

	resp, err := g.client.FromStream(ctx, bytes.NewReader(chunk.Payload), options)
	if err != nil {
		return nil, classifyDeepgramError(err)
	}

	// Prefer utterance splits; fall back to the whole-channel alternative for
	// responses without utterance data.
	var segments []Segment
	for _, u := range resp.Results.Utterances {
		text := strings.TrimSpace(u.Transcript)
		if text == "" {
			continue
		}
		segments = append(segments, segmentFromRelative(chunk, u.Start, u.End, text, u.Confidence))
	}
	if len(segments) > 0 {
		return segments, nil
	}

	for _, channel := range resp.Results.Channels {
		for _, alt := range channel.Alternatives {
			text := strings.TrimSpace(alt.Transcript)
			if text == "" {
				continue
			}
			segments = append(segments, segmentFromRelative(chunk, 0, chunk.Duration().Seconds(), text, alt.Confidence))
			break
		}
		break
	}
	return segments, nil
}

// classifyDeepgramError folds SDK errors into the gateway taxonomy. The SDK
// surfaces HTTP failures as plain errors, so status classification falls back
// to message inspection.
func classifyDeepgramError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "400") || strings.Contains(msg, "415"):
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "500") || strings.Contains(msg, "502") || strings.Contains(msg, "503"):
		return fmt.Errorf("%w: %v", ErrTransient, err)
	default:
		return classifyTransport(err)
	}
}
