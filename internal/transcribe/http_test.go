package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPGatewayParsesSegments(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotContentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("language") != "ja" {
			t.Errorf("expected language ja, got %q", r.FormValue("language"))
		}

		_ = json.NewEncoder(w).Encode(httpResponse{Segments: []httpSegment{
			{Start: 0.0, End: 2.5, Text: "Good morning.", Confidence: 0.93},
			{Start: 3.0, End: 5.0, Text: "Let's begin.", Confidence: 0.88},
		}})
	}))
	defer srv.Close()

	g, err := newHTTPGateway(Options{BaseURL: srv.URL, Language: "ja"})
	if err != nil {
		t.Fatalf("newHTTPGateway failed: %v", err)
	}

	chunk := retryTestChunk()
	segments, err := g.Transcribe(context.Background(), chunk)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "Good morning." {
		t.Errorf("unexpected text %q", segments[0].Text)
	}
	if want := chunk.StartTime.Add(3 * time.Second); !segments[1].StartTime.Equal(want) {
		t.Errorf("expected absolute start %s, got %s", want, segments[1].StartTime)
	}
	if segments[0].SessionID != "s1" || segments[0].SourceID != "alice" {
		t.Errorf("segment did not inherit chunk identity: %+v", segments[0])
	}
	if gotContentType == "" {
		t.Error("expected multipart content type header")
	}
}

func TestHTTPGatewayFallsBackToFullText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(httpResponse{Text: "One long utterance."})
	}))
	defer srv.Close()

	g, err := newHTTPGateway(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("newHTTPGateway failed: %v", err)
	}

	chunk := retryTestChunk()
	segments, err := g.Transcribe(context.Background(), chunk)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if !segments[0].EndTime.Equal(chunk.EndTime) {
		t.Errorf("expected fallback segment to span the chunk, got end %s", segments[0].EndTime)
	}
}

func TestHTTPGatewayClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"bad request is permanent", http.StatusBadRequest, ErrPermanent},
		{"unsupported media is permanent", http.StatusUnsupportedMediaType, ErrPermanent},
		{"rate limit is transient", http.StatusTooManyRequests, ErrTransient},
		{"server error is transient", http.StatusInternalServerError, ErrTransient},
		{"bad gateway is transient", http.StatusBadGateway, ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			g, err := newHTTPGateway(Options{BaseURL: srv.URL})
			if err != nil {
				t.Fatalf("newHTTPGateway failed: %v", err)
			}

			_, err = g.Transcribe(context.Background(), retryTestChunk())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestHTTPGatewayUnreachableBackend(t *testing.T) {
	// A server that is already closed refuses connections.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	g, err := newHTTPGateway(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("newHTTPGateway failed: %v", err)
	}

	_, err = g.Transcribe(context.Background(), retryTestChunk())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestHTTPGatewayRequiresBaseURL(t *testing.T) {
	if _, err := newHTTPGateway(Options{}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}
