package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/domain/repositories"
)

func validateTone(vibe entities.Vibe, language entities.Language) (entities.Language, error) {
	if vibe == "" {
		return "", fmt.Errorf("%w: missing vibe", ErrInvalidVibe)
	}
	if !vibe.Valid() {
		return "", ErrInvalidVibe
	}
	if language == "" {
		language = entities.LanguageEnglish
	}
	if !language.Valid() {
		return "", fmt.Errorf("%w. Choose from: %s", ErrInvalidLanguage, joinLanguages())
	}
	return language, nil
}

func joinLanguages() string {
	names := make([]string, len(entities.Languages))
	for i, l := range entities.Languages {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}

// DecodeDataURL decodes a base64 data URL and checks the payload is an image.
// The declared media type is ignored; the bytes are sniffed instead.
func DecodeDataURL(dataURL string) (entities.Image, error) {
	_, encoded, ok := strings.Cut(dataURL, ",")
	if !ok {
		return entities.Image{}, fmt.Errorf("%w: not a data URL", ErrInvalidImage)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return entities.Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return sniffImage(data)
}

func sniffImage(data []byte) (entities.Image, error) {
	img := entities.Image{MIMEType: http.DetectContentType(data), Data: data}
	if err := img.Validate(); err != nil {
		return entities.Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// generationRecorder bumps the usage counter of signed-in users. Failures are logged only.
type generationRecorder struct {
	users  repositories.UserRepository
	logger *zap.Logger
}

func (r generationRecorder) record(ctx context.Context, userID string) {
	if r.users == nil || userID == "" {
		return
	}
	if err := r.users.IncrementGenerations(ctx, userID); err != nil {
		r.logger.Warn("Failed to record generation",
			zap.String("userID", userID),
			zap.Error(err))
	}
}
