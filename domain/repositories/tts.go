package repositories

import (
	"context"

	"github.com/aiverse/server/domain/entities"
)

// TextToSpeech streams synthesized speech as raw PCM chunks
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string, voiceID string) (<-chan []byte, error)
	SampleRate() int
}

// VoiceCloner synthesizes text in the voice of an uploaded sample
type VoiceCloner interface {
	// Languages lists the language codes the engine accepts
	Languages() []string
	CloneVoice(ctx context.Context, req entities.CloneRequest) (*entities.PCMAudio, error)
}

// AudioEncoder wraps raw PCM in a playable container
type AudioEncoder interface {
	EncodeWAV(audio *entities.PCMAudio) ([]byte, error)
}
