package tts

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nidhogg/analysis-room/internal/expert"
)

// Service runs the synthesis pipeline: token stripping, text preparation,
// Gemini first, ElevenLabs when Gemini is exhausted.
type Service struct {
	gemini *GeminiEngine
	eleven *ElevenLabsEngine
	logger *zap.Logger
}

// NewService wires the engines. Either may be nil when unconfigured.
func NewService(gemini *GeminiEngine, eleven *ElevenLabsEngine, logger *zap.Logger) *Service {
	return &Service{gemini: gemini, eleven: eleven, logger: logger}
}

// ErrNoSpeakableText means the input was only control tokens.
var ErrNoSpeakableText = fmt.Errorf("no speakable text after removing stop tokens")

// Speak synthesizes one expert turn. storedVoice is the per-conversation
// voice setting, validated against the prebuilt list.
func (s *Service) Speak(ctx context.Context, id expert.ID, text, storedVoice string) ([]byte, string, error) {
	cleaned := StripStopTokens(text)
	if cleaned == "" {
		return nil, "", ErrNoSpeakableText
	}
	prepared := PrepareText(cleaned)

	if s.gemini != nil {
		voice := ResolveVoice(id, storedVoice)
		audio, contentType, err := s.gemini.Synthesize(ctx, SpeechPrompt(id, prepared), voice)
		if err == nil {
			s.logger.Debug("tts synthesized",
				zap.String("engine", "gemini"),
				zap.String("voice", voice),
				zap.Int("bytes", len(audio)))
			return audio, contentType, nil
		}
		s.logger.Warn("gemini tts failed, trying fallback", zap.Error(err))
	}

	if s.eleven != nil {
		audio, contentType, err := s.eleven.Synthesize(ctx, id, prepared)
		if err == nil {
			s.logger.Debug("tts synthesized",
				zap.String("engine", "elevenlabs"),
				zap.Int("bytes", len(audio)))
			return audio, contentType, nil
		}
		s.logger.Warn("elevenlabs tts failed", zap.Error(err))
		return nil, "", err
	}

	return nil, "", fmt.Errorf("tts: no engine available")
}
