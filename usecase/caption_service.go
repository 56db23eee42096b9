package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/domain/repositories"
	"github.com/aiverse/server/internal/normalize"
)

const captionCount = 3

// CaptionInput is one caption generation request
type CaptionInput struct {
	Vibe         entities.Vibe
	Language     entities.Language
	CustomPrompt string
	// ImageData is a base64 data URL
	ImageData string
	UserID    string
}

// CaptionService turns an image and a vibe into Instagram captions
type CaptionService struct {
	llm        repositories.ContentGenerator
	normalizer *normalize.Normalizer
	recorder   generationRecorder
	logger     *zap.Logger
}

// NewCaptionService creates a new caption service
func NewCaptionService(
	llm repositories.ContentGenerator,
	normalizer *normalize.Normalizer,
	users repositories.UserRepository,
	logger *zap.Logger,
) *CaptionService {
	return &CaptionService{
		llm:        llm,
		normalizer: normalizer,
		recorder:   generationRecorder{users: users, logger: logger},
		logger:     logger,
	}
}

// Generate returns the normalized captions
func (s *CaptionService) Generate(ctx context.Context, in CaptionInput) ([]string, error) {
	language, err := validateTone(in.Vibe, in.Language)
	if err != nil {
		return nil, err
	}
	if in.ImageData == "" {
		return nil, fmt.Errorf("%w: missing image data", ErrInvalidImage)
	}
	img, err := DecodeDataURL(in.ImageData)
	if err != nil {
		return nil, err
	}

	raw, err := s.llm.Generate(ctx, repositories.GenerationRequest{
		Prompt: captionPrompt(in.Vibe, language, in.CustomPrompt),
		Images: []entities.Image{img},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate captions: %w", err)
	}

	result := s.normalizer.Normalize(raw, normalize.Captions)
	s.logger.Debug("Generated captions",
		zap.Int("count", result.Len()),
		zap.String("tier", string(result.Tier)))
	if result.Empty() {
		return nil, ErrNoResult
	}

	s.recorder.record(ctx, in.UserID)
	return result.Captions, nil
}

func captionPrompt(vibe entities.Vibe, language entities.Language, custom string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d Instagram captions in %s for an image with a %s vibe.\n",
		captionCount, language, strings.ToLower(string(vibe)))
	b.WriteString("The captions should be engaging, concise, include 2-3 relevant hashtags, and be suitable for Instagram.\n")
	if custom = strings.TrimSpace(custom); custom != "" {
		fmt.Fprintf(&b, "Incorporate this context: %s\n", custom)
	}
	b.WriteString("Return only a JSON array of strings, nothing else.\n")
	b.WriteString(`Example: ["Caption 1 #hashtag1 #hashtag2", "Caption 2 #hashtag3 #hashtag4", "Caption 3 #hashtag5 #hashtag6"]`)
	return b.String()
}
