package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nidhogg/analysis-room/internal/expert"
)

const elevenEndpoint = "https://api.elevenlabs.io/v1"

var elevenVoices = map[expert.ID]string{
	expert.Ontological: "VR6AewLTigWG4xSOukaG",
	expert.Renaissance: "IKne3meq5aSn9XLyUdCD",
	expert.Crisis:      "JBFqnCBsd6RMkjVDRZzb",
	expert.Operational: "IKne3meq5aSn9XLyUdCD",
}

// ElevenLabsEngine is the fallback synthesis path, returning MP3.
type ElevenLabsEngine struct {
	apiKey string
	client *http.Client
}

// NewElevenLabsEngine creates the engine.
func NewElevenLabsEngine(apiKey string) *ElevenLabsEngine {
	return &ElevenLabsEngine{
		apiKey: apiKey,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

type elevenRequest struct {
	Text          string              `json:"text"`
	ModelID       string              `json:"model_id"`
	VoiceSettings elevenVoiceSettings `json:"voice_settings"`
}

type elevenVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts prepared text with the expert's mapped voice.
func (e *ElevenLabsEngine) Synthesize(ctx context.Context, id expert.ID, prepared string) ([]byte, string, error) {
	if e.apiKey == "" {
		return nil, "", fmt.Errorf("elevenlabs: no api key")
	}

	voice, ok := elevenVoices[id]
	if !ok {
		voice = elevenVoices[expert.Ontological]
	}

	payload, err := json.Marshal(elevenRequest{
		Text:    prepared,
		ModelID: "eleven_multilingual_v2",
		VoiceSettings: elevenVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.8,
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", elevenEndpoint, voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, truncateBody(body))
	}
	if len(body) < 100 {
		return nil, "", fmt.Errorf("elevenlabs: audio too small, likely empty")
	}
	return body, "audio/mpeg", nil
}
