package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/domain/repositories"
)

const defaultVoiceLanguage = "en"

// VoiceInput is one voice cloning request
type VoiceInput struct {
	Sample     []byte
	SampleName string
	Text       string
	Language   string
	UserID     string
}

// VoiceService speaks text in the voice of an uploaded sample
type VoiceService struct {
	cloner   repositories.VoiceCloner
	encoder  repositories.AudioEncoder
	recorder generationRecorder
	logger   *zap.Logger
}

// NewVoiceService creates a new voice service
func NewVoiceService(
	cloner repositories.VoiceCloner,
	encoder repositories.AudioEncoder,
	users repositories.UserRepository,
	logger *zap.Logger,
) *VoiceService {
	return &VoiceService{
		cloner:   cloner,
		encoder:  encoder,
		recorder: generationRecorder{users: users, logger: logger},
		logger:   logger,
	}
}

// Languages lists the accepted language codes
func (s *VoiceService) Languages() []string {
	return s.cloner.Languages()
}

// Clone returns a WAV file of Text spoken in the sample's voice
func (s *VoiceService) Clone(ctx context.Context, in VoiceInput) ([]byte, error) {
	if len(in.Sample) == 0 {
		return nil, fmt.Errorf("%w: missing file field 'audio'", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: missing 'text'", ErrInvalidInput)
	}

	language := strings.ToLower(strings.TrimSpace(in.Language))
	if language == "" {
		language = defaultVoiceLanguage
	}
	if !slices.Contains(s.cloner.Languages(), language) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVoiceLanguage, language)
	}

	s.logger.Info("Cloning voice",
		zap.String("language", language),
		zap.Int("sampleBytes", len(in.Sample)),
		zap.Int("textLength", len(in.Text)))

	pcm, err := s.cloner.CloneVoice(ctx, entities.CloneRequest{
		Sample:     in.Sample,
		SampleName: in.SampleName,
		Text:       in.Text,
		Language:   language,
	})
	if err != nil {
		return nil, fmt.Errorf("voice cloning failed: %w", err)
	}

	wav, err := s.encoder.EncodeWAV(pcm)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audio: %w", err)
	}

	s.logger.Info("Voice cloned", zap.Float64("seconds", pcm.Duration()))
	s.recorder.record(ctx, in.UserID)
	return wav, nil
}
