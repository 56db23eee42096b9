package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/domain/repositories"
	"github.com/aiverse/server/internal/normalize"
)

const (
	musicCount    = 4
	enrichWorkers = 4
)

// MusicInput is one music suggestion request
type MusicInput struct {
	Vibe     entities.Vibe
	Language entities.Language
	UserID   string
}

// MusicService suggests tracks for a post and links them to a streaming service
type MusicService struct {
	llm        repositories.ContentGenerator
	search     repositories.MusicSearch
	normalizer *normalize.Normalizer
	recorder   generationRecorder
	logger     *zap.Logger
}

// NewMusicService creates a new music service. search may be nil.
func NewMusicService(
	llm repositories.ContentGenerator,
	search repositories.MusicSearch,
	normalizer *normalize.Normalizer,
	users repositories.UserRepository,
	logger *zap.Logger,
) *MusicService {
	return &MusicService{
		llm:        llm,
		search:     search,
		normalizer: normalizer,
		recorder:   generationRecorder{users: users, logger: logger},
		logger:     logger,
	}
}

// Suggest returns the normalized suggestions, each with a track URL when one was found
func (s *MusicService) Suggest(ctx context.Context, in MusicInput) ([]entities.MusicSuggestion, error) {
	language, err := validateTone(in.Vibe, in.Language)
	if err != nil {
		return nil, err
	}

	raw, err := s.llm.Generate(ctx, repositories.GenerationRequest{
		Prompt: musicPrompt(in.Vibe, language),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate music suggestions: %w", err)
	}

	result := s.normalizer.Normalize(raw, normalize.MusicSuggestions)
	if result.Empty() {
		return nil, ErrNoResult
	}

	music := result.Music
	s.enrich(ctx, music)
	s.recorder.record(ctx, in.UserID)
	return music, nil
}

// enrich fills SpotifyURL in place. Lookup failures leave the URL empty.
func (s *MusicService) enrich(ctx context.Context, music []entities.MusicSuggestion) {
	if s.search == nil {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichWorkers)
	for i := range music {
		i := i
		g.Go(func() error {
			trackURL, err := s.search.SearchTrack(ctx, music[i].SearchQuery())
			if err != nil {
				s.logger.Warn("Track lookup failed",
					zap.String("title", music[i].Title),
					zap.String("artist", music[i].Artist),
					zap.Error(err))
				return nil
			}
			music[i].SpotifyURL = trackURL
			return nil
		})
	}
	_ = g.Wait()
}

func musicPrompt(vibe entities.Vibe, language entities.Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest %d music tracks in %s that complement a %s Instagram post vibe.\n",
		musicCount, language, strings.ToLower(string(vibe)))
	b.WriteString("Each suggestion must include the song title, artist, and genre.\n")
	b.WriteString("Return only a JSON array of objects with keys: title, artist, genre, nothing else.\n")
	b.WriteString(`Example: [{"title": "Song 1", "artist": "Artist 1", "genre": "Pop"}, {"title": "Song 2", "artist": "Artist 2", "genre": "Rock"}]`)
	return b.String()
}
