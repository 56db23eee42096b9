package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aiverse/server/domain/repositories"
)

func TestPostServiceGenerate(t *testing.T) {
	llm := &fakeLLM{output: `{"caption":"Golden","song_title":"Golden Hour","song_artist":"JVKE","hashtags":["#sun"]}`}
	search := &fakeSearch{urls: map[string]string{"Golden Hour JVKE": "https://open.spotify.com/track/gh"}}
	users := newFakeUsers()
	svc := NewPostService(llm, search, users, zaptest.NewLogger(t))

	kit, err := svc.Generate(context.Background(), PostInput{Image: pngHeader, Text: "sunset walk", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Golden", kit.Caption)
	assert.Equal(t, "Golden Hour - JVKE", kit.Song())
	assert.Equal(t, "https://open.spotify.com/track/gh", kit.SongURL)
	assert.Equal(t, []string{"#sun"}, kit.Hashtags)
	assert.Equal(t, 1, users.count("u1"))

	req := llm.requests[0]
	assert.Contains(t, req.Prompt, "'sunset walk'")
	require.NotNil(t, req.ResponseSchema)
	names := make([]string, 0, len(req.ResponseSchema.Properties))
	for _, p := range req.ResponseSchema.Properties {
		names = append(names, p.Name)
		assert.True(t, p.Required)
	}
	assert.Equal(t, []string{"caption", "song_title", "song_artist", "hashtags"}, names)
	assert.Equal(t, repositories.PropertyStringArray, req.ResponseSchema.Properties[3].Type)
}

func TestPostServiceFencedOutputAndMissingSong(t *testing.T) {
	llm := &fakeLLM{output: "```json\n{\"caption\":\"Hi\",\"song_title\":\"\",\"song_artist\":\"\"}\n```"}
	search := &fakeSearch{}
	svc := NewPostService(llm, search, nil, zaptest.NewLogger(t))

	kit, err := svc.Generate(context.Background(), PostInput{Image: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, "No song recommendation.", kit.Song())
	assert.Empty(t, search.queries)
	assert.NotNil(t, kit.Hashtags)
}

func TestPostServiceErrors(t *testing.T) {
	ctx := context.Background()

	svc := NewPostService(&fakeLLM{output: "{}"}, nil, nil, zaptest.NewLogger(t))
	_, err := svc.Generate(ctx, PostInput{})
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = svc.Generate(ctx, PostInput{Image: []byte("plain text")})
	assert.ErrorIs(t, err, ErrInvalidImage)

	svc = NewPostService(&fakeLLM{output: "not json at all"}, nil, nil, zaptest.NewLogger(t))
	_, err = svc.Generate(ctx, PostInput{Image: pngHeader})
	assert.ErrorIs(t, err, ErrNoResult)

	search := &fakeSearch{err: errors.New("down")}
	svc = NewPostService(&fakeLLM{output: `{"caption":"c","song_title":"t","song_artist":"a","hashtags":[]}`}, search, nil, zaptest.NewLogger(t))
	kit, err := svc.Generate(ctx, PostInput{Image: pngHeader})
	require.NoError(t, err)
	assert.Empty(t, kit.SongURL)
}
