package repositories

import "context"

// MusicSearch looks tracks up on a streaming service
type MusicSearch interface {
	// SearchTrack returns a shareable URL for the best match, or "" when nothing matched
	SearchTrack(ctx context.Context, query string) (string, error)
}
