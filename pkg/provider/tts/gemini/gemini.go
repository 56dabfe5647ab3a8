// Package gemini provides a Gemini-backed one-shot TTS synthesizer using the
// generateContent REST endpoint with an audio response modality. It implements
// the tts.Synthesizer interface.
package gemini

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"context"

	"github.com/danakov/voxengine/pkg/audio"
	"github.com/danakov/voxengine/pkg/provider/tts"
)

var _ tts.Synthesizer = (*Synthesizer)(nil)

const (
	defaultModel   = "gemini-2.5-flash-preview-tts"
	defaultBaseURL = "https://generativelanguage.googleapis.com"
)

// Option is a functional option for configuring the Synthesizer.
type Option func(*Synthesizer)

// WithModel sets the Gemini TTS model.
func WithModel(model string) Option {
	return func(s *Synthesizer) { s.model = model }
}

// WithBaseURL overrides the API base URL. Primarily used in tests to point at
// a local mock server.
func WithBaseURL(url string) Option {
	return func(s *Synthesizer) { s.baseURL = url }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Synthesizer) { s.httpClient = c }
}

// Synthesizer implements tts.Synthesizer backed by the Gemini generateContent
// API.
type Synthesizer struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// New creates a new Gemini TTS Synthesizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: apiKey must not be empty")
	}
	s := &Synthesizer{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// ---- request/response types ----

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error,omitempty"`
}

type candidate struct {
	Content content `json:"content"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

// Synthesize sends one generateContent request with an audio response modality
// and decodes the returned base64 PCM into a 24 kHz mono frame. Deadlines come
// from ctx.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string) (audio.Frame, error) {
	if text == "" {
		return audio.Frame{}, tts.ErrEmptyText
	}

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: text}}}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
	}
	if voice != "" {
		reqBody.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voice},
			},
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return audio.Frame{}, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", s.baseURL, s.model, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return audio.Frame{}, fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return audio.Frame{}, fmt.Errorf("gemini: synthesize: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Frame{}, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return audio.Frame{}, fmt.Errorf("gemini: synthesize: unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return audio.Frame{}, fmt.Errorf("gemini: decode response: %w", err)
	}
	if gr.Error != nil {
		return audio.Frame{}, fmt.Errorf("gemini: synthesize: %s", gr.Error.Message)
	}

	for _, c := range gr.Candidates {
		for _, p := range c.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			frame, err := audio.DecodeChunk(p.InlineData.Data, audio.OutputFormat.SampleRate)
			if err != nil {
				return audio.Frame{}, fmt.Errorf("gemini: decode audio: %w", err)
			}
			return frame, nil
		}
	}
	return audio.Frame{}, fmt.Errorf("gemini: synthesize: response contains no audio part")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
