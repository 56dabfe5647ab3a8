package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danakov/voxengine/pkg/audio"
	"github.com/danakov/voxengine/pkg/provider/tts"
	"github.com/danakov/voxengine/pkg/provider/tts/gemini"
)

// startServer launches a test HTTP server and returns a Synthesizer pointed at
// it.
func startServer(t *testing.T, handler http.HandlerFunc) *gemini.Synthesizer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s, err := gemini.New("test-key", gemini.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// audioResponse builds a generateContent response carrying the given encoded
// chunk.
func audioResponse(chunk audio.EncodedChunk) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"parts": []map[string]any{
						{"inlineData": map[string]any{"mimeType": chunk.MIMEType, "data": chunk.Data}},
					},
				},
			},
		},
	}
}

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := gemini.New(""); err == nil {
		t.Fatal("New with empty API key should return an error")
	}
}

func TestSynthesize_DecodesAudio(t *testing.T) {
	t.Parallel()

	want := []int16{500, -600, 700}
	chunk := audio.EncodeFrame(audio.Frame{Samples: want, SampleRate: 24000, Channels: 1})

	var gotPath, gotQuery string
	var gotBody map[string]any

	s := startServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(audioResponse(chunk))
	})

	frame, err := s.Synthesize(context.Background(), "hello there", "Kore")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if !strings.Contains(gotPath, ":generateContent") {
		t.Errorf("path = %q; want generateContent endpoint", gotPath)
	}
	if !strings.Contains(gotQuery, "key=test-key") {
		t.Errorf("query = %q; want key=test-key", gotQuery)
	}
	body, _ := json.Marshal(gotBody)
	if !strings.Contains(string(body), `"AUDIO"`) {
		t.Errorf("request body %s should request AUDIO modality", body)
	}
	if !strings.Contains(string(body), `"Kore"`) {
		t.Errorf("request body %s should carry the voice name", body)
	}

	if frame.SampleRate != 24000 {
		t.Errorf("SampleRate = %d; want 24000", frame.SampleRate)
	}
	if len(frame.Samples) != len(want) {
		t.Fatalf("sample count = %d; want %d", len(frame.Samples), len(want))
	}
	for i := range want {
		if frame.Samples[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, frame.Samples[i], want[i])
		}
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	t.Parallel()

	s := startServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be hit for empty text")
	})

	if _, err := s.Synthesize(context.Background(), "", "Kore"); !errors.Is(err, tts.ErrEmptyText) {
		t.Fatalf("err = %v; want ErrEmptyText", err)
	}
}

func TestSynthesize_HTTPError(t *testing.T) {
	t.Parallel()

	s := startServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":429,"message":"quota"}}`, http.StatusTooManyRequests)
	})

	_, err := s.Synthesize(context.Background(), "hi", "")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v; want status 429 error", err)
	}
}

func TestSynthesize_NoAudioPart(t *testing.T) {
	t.Parallel()

	s := startServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "not audio"}}}},
			},
		})
	})

	if _, err := s.Synthesize(context.Background(), "hi", ""); err == nil {
		t.Fatal("expected error for a response without an audio part")
	}
}

func TestSynthesize_MalformedAudio(t *testing.T) {
	t.Parallel()

	s := startServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"inlineData": map[string]any{"mimeType": "audio/pcm;rate=24000", "data": "!!!"}},
				}}},
			},
		})
	})

	_, err := s.Synthesize(context.Background(), "hi", "")
	if !errors.Is(err, audio.ErrMalformedChunk) {
		t.Fatalf("err = %v; want ErrMalformedChunk", err)
	}
}

func TestSynthesize_ContextCancelled(t *testing.T) {
	t.Parallel()

	s := startServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Synthesize(ctx, "hi", ""); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
