package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ttsModels are tried in order; the preview name still serves some keys.
var ttsModels = []string{"gemini-2.5-flash-preview-tts", "gemini-2.5-flash-tts"}

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// GeminiEngine calls the Gemini native-audio models over REST.
type GeminiEngine struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewGeminiEngine creates the engine. Empty endpoint uses the public API.
func NewGeminiEngine(endpoint, apiKey string) *GeminiEngine {
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	return &GeminiEngine{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

type geminiTTSRequest struct {
	Contents         []geminiTTSContent `json:"contents"`
	GenerationConfig geminiTTSGenConfig `json:"generationConfig"`
}

type geminiTTSContent struct {
	Parts []geminiTTSPart `json:"parts"`
}

type geminiTTSPart struct {
	Text string `json:"text"`
}

type geminiTTSGenConfig struct {
	ResponseModalities []string        `json:"responseModalities"`
	SpeechConfig       geminiTTSSpeech `json:"speechConfig"`
}

type geminiTTSSpeech struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type geminiTTSResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Synthesize tries each TTS model and returns WAV audio. Raw PCM responses
// are framed; pre-encoded audio passes through.
func (g *GeminiEngine) Synthesize(ctx context.Context, prompt, voiceName string) ([]byte, string, error) {
	if g.apiKey == "" {
		return nil, "", fmt.Errorf("gemini tts: no api key")
	}

	var lastErr error
	for _, model := range ttsModels {
		audio, mime, err := g.generate(ctx, model, prompt, voiceName)
		if err != nil {
			lastErr = err
			continue
		}
		if strings.Contains(mime, "wav") || strings.Contains(mime, "mp3") || strings.Contains(mime, "mpeg") {
			return audio, contentTypeFor(mime), nil
		}
		return WrapPCM(audio), "audio/wav", nil
	}
	return nil, "", fmt.Errorf("gemini tts: all models failed: %w", lastErr)
}

func (g *GeminiEngine) generate(ctx context.Context, model, prompt, voiceName string) ([]byte, string, error) {
	reqBody := geminiTTSRequest{
		Contents: []geminiTTSContent{{Parts: []geminiTTSPart{{Text: prompt}}}},
		GenerationConfig: geminiTTSGenConfig{
			ResponseModalities: []string{"AUDIO"},
		},
	}
	reqBody.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = voiceName

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.endpoint, model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("gemini tts %s: status %d: %s", model, resp.StatusCode, truncateBody(body))
	}

	var parsed geminiTTSResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, "", fmt.Errorf("decode response: %w", err)
	}
	for _, cand := range parsed.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, "", fmt.Errorf("decode audio: %w", err)
			}
			mime := part.InlineData.MimeType
			if mime == "" {
				mime = "audio/L16;rate=24000"
			}
			return audio, mime, nil
		}
	}
	return nil, "", fmt.Errorf("gemini tts %s: no audio in response", model)
}

func contentTypeFor(mime string) string {
	if strings.Contains(mime, "mp3") || strings.Contains(mime, "mpeg") {
		return "audio/mpeg"
	}
	return "audio/wav"
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
