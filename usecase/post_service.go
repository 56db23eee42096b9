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

// PostInput is one post kit request
type PostInput struct {
	Image    []byte
	MIMEType string
	Text     string
	UserID   string
}

// postSchema is the object the model is asked to return
var postSchema = &repositories.ObjectSchema{
	Properties: []repositories.SchemaProperty{
		{Name: "caption", Type: repositories.PropertyString, Required: true},
		{Name: "song_title", Type: repositories.PropertyString, Required: true},
		{Name: "song_artist", Type: repositories.PropertyString, Required: true},
		{Name: "hashtags", Type: repositories.PropertyStringArray, Required: true},
	},
}

// PostService produces a caption, a song and hashtags for one image in a single model call
type PostService struct {
	llm      repositories.ContentGenerator
	search   repositories.MusicSearch
	recorder generationRecorder
	logger   *zap.Logger
}

// NewPostService creates a new post service. search may be nil.
func NewPostService(
	llm repositories.ContentGenerator,
	search repositories.MusicSearch,
	users repositories.UserRepository,
	logger *zap.Logger,
) *PostService {
	return &PostService{
		llm:      llm,
		search:   search,
		recorder: generationRecorder{users: users, logger: logger},
		logger:   logger,
	}
}

// Generate returns the post kit with SongURL set when the song was found
func (s *PostService) Generate(ctx context.Context, in PostInput) (*entities.PostKit, error) {
	if len(in.Image) == 0 {
		return nil, fmt.Errorf("%w: no image file provided", ErrInvalidImage)
	}
	img, err := sniffImage(in.Image)
	if err != nil {
		return nil, err
	}

	raw, err := s.llm.Generate(ctx, repositories.GenerationRequest{
		Prompt:         postPrompt(in.Text),
		Images:         []entities.Image{img},
		ResponseSchema: postSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate post: %w", err)
	}

	var kit entities.PostKit
	if err := normalize.DecodeObject(raw, &kit); err != nil {
		s.logger.Warn("Unparseable post kit", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNoResult, err)
	}
	if kit.Hashtags == nil {
		kit.Hashtags = []string{}
	}

	if s.search != nil && strings.TrimSpace(kit.SongTitle) != "" {
		query := strings.TrimSpace(kit.SongTitle + " " + kit.SongArtist)
		trackURL, err := s.search.SearchTrack(ctx, query)
		if err != nil {
			s.logger.Warn("Track lookup failed", zap.String("query", query), zap.Error(err))
		} else {
			kit.SongURL = trackURL
		}
	}

	s.recorder.record(ctx, in.UserID)
	return &kit, nil
}

func postPrompt(userText string) string {
	return fmt.Sprintf("Analyze the uploaded image. The user has provided the following context/request: '%s'. "+
		"Based on the image content and the provided context, generate:\n"+
		"1. A concise and engaging Instagram **caption**.\n"+
		"2. A relevant **song title** (just the song title, no artist yet).\n"+
		"3. The **artist** for that song.\n"+
		"4. A list of 5-10 popular and relevant **hashtags**.\n\n"+
		"Provide the output in JSON format with keys 'caption', 'song_title', 'song_artist', and 'hashtags' (which should be an array of strings).",
		strings.TrimSpace(userText))
}
