package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/internal/observability"
)

func TestNormalizeStrictPrecedence(t *testing.T) {
	result := Normalize(`["a", "b"]`, Captions)

	assert.Equal(t, TierStrict, result.Tier)
	assert.Equal(t, []string{"a", "b"}, result.Captions)
}

func TestNormalizeFenceStripping(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"json tag", "```json\n[\"x\"]\n```"},
		{"no tag", "```\n[\"x\"]\n```"},
		{"other tag", "```javascript\n[\"x\"]\n```"},
		{"surrounding whitespace", "  \n```json\n[\"x\"]\n```\n  "},
		{"single line", "```json [\"x\"]```"},
		{"opening only", "```json\n[\"x\"]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.raw, Captions)
			assert.Equal(t, TierStrict, result.Tier)
			assert.Equal(t, []string{"x"}, result.Captions)
		})
	}
}

func TestNormalizeCaptionFallback(t *testing.T) {
	result := Normalize("1. Keep going\n# comment\n2. Stay humble", Captions)

	assert.Equal(t, TierFallback, result.Tier)
	assert.Equal(t, []string{"1. Keep going", "2. Stay humble"}, result.Captions)
}

func TestNormalizeCaptionFallbackSkipsBlankAndIndentedComments(t *testing.T) {
	raw := "Sunset vibes #golden\n\n   \n   # heading\n  Chasing light  "
	result := Normalize(raw, Captions)

	assert.Equal(t, []string{"Sunset vibes #golden", "Chasing light"}, result.Captions)
}

func TestNormalizeStrictCaptionsDropEmpty(t *testing.T) {
	result := Normalize(`["one", "", "  ", "two"]`, Captions)

	assert.Equal(t, TierStrict, result.Tier)
	assert.Equal(t, []string{"one", "two"}, result.Captions)
}

func TestNormalizeCaptionsWrongTypeFallsBack(t *testing.T) {
	result := Normalize(`[1, 2]`, Captions)

	assert.Equal(t, TierFallback, result.Tier)
	assert.Equal(t, []string{"[1, 2]"}, result.Captions)
}

func TestNormalizeMusicPatternA(t *testing.T) {
	result := Normalize("1. Eye of the Tiger - Survivor (Rock)", MusicSuggestions)

	assert.Equal(t, TierFallback, result.Tier)
	assert.Equal(t, []entities.MusicSuggestion{
		{Title: "Eye of the Tiger", Artist: "Survivor", Genre: "Rock"},
	}, result.Music)
}

func TestNormalizeMusicPatternB(t *testing.T) {
	result := Normalize("Imagine, John Lennon, Pop", MusicSuggestions)

	assert.Equal(t, []entities.MusicSuggestion{
		{Title: "Imagine", Artist: "John Lennon", Genre: "Pop"},
	}, result.Music)
}

func TestNormalizeMusicEmptyOnTotalFailure(t *testing.T) {
	result := Normalize("not json and not line-shaped @@@@", MusicSuggestions)

	require.NotNil(t, result.Music)
	assert.Empty(t, result.Music)
	assert.True(t, result.Empty())
}

func TestNormalizeMusicMixedLines(t *testing.T) {
	raw := `Here are some tracks:
# Suggestions
1. Lose Yourself, Eminem (Hip-Hop)
2. Happy – Pharrell Williams (Pop)
3. Stronger, Kanye West, Hip-Hop
4. - Nobody (Jazz)`

	result := Normalize(raw, MusicSuggestions)

	// the prose line matches neither pattern and the last record has no title
	assert.Equal(t, []entities.MusicSuggestion{
		{Title: "Lose Yourself", Artist: "Eminem", Genre: "Hip-Hop"},
		{Title: "Happy", Artist: "Pharrell Williams", Genre: "Pop"},
		{Title: "Stronger", Artist: "Kanye West", Genre: "Hip-Hop"},
	}, result.Music)
}

func TestNormalizeMusicPatternAPrecedesB(t *testing.T) {
	// both patterns match; the parenthesised genre wins
	result := Normalize("Hello, Adele, Again (Soul)", MusicSuggestions)

	assert.Equal(t, []entities.MusicSuggestion{
		{Title: "Hello", Artist: "Adele, Again", Genre: "Soul"},
	}, result.Music)
}

func TestNormalizeMusicStrict(t *testing.T) {
	raw := "```json\n" + `[
  {"title": "Believer", "artist": "Imagine Dragons", "genre": "Rock"},
  {"title": "", "artist": "Nobody", "genre": "Pop"},
  {"title": "Levitating", "artist": "Dua Lipa"}
]` + "\n```"

	result := Normalize(raw, MusicSuggestions)

	assert.Equal(t, TierStrict, result.Tier)
	assert.Equal(t, []entities.MusicSuggestion{
		{Title: "Believer", Artist: "Imagine Dragons", Genre: "Rock"},
	}, result.Music)
}

func TestNormalizeNullIsNotStrict(t *testing.T) {
	result := Normalize("null", Captions)

	assert.Equal(t, TierFallback, result.Tier)
	assert.Equal(t, []string{"null"}, result.Captions)
}

func TestNormalizeEmptyInput(t *testing.T) {
	assert.Empty(t, CaptionList(""))
	assert.Empty(t, MusicList("   \n  "))
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, "plain", StripFence("  plain  "))
	assert.Equal(t, `{"a":1}`, StripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, "line one\nline two", StripFence("```\nline one\nline two\n```"))
}

func TestDecodeObject(t *testing.T) {
	var kit entities.PostKit

	err := DecodeObject("```json\n{\"caption\":\"Hi\",\"song_title\":\"Yellow\",\"song_artist\":\"Coldplay\",\"hashtags\":[\"#a\"]}\n```", &kit)
	require.NoError(t, err)
	assert.Equal(t, "Hi", kit.Caption)
	assert.Equal(t, "Yellow - Coldplay", kit.Song())

	var embedded entities.PostKit
	err = DecodeObject("Sure! Here it is: {\"caption\":\"Hey\"} Enjoy.", &embedded)
	require.NoError(t, err)
	assert.Equal(t, "Hey", embedded.Caption)

	assert.Error(t, DecodeObject("no object here", &embedded))
}

func TestNormalizerRecordsTier(t *testing.T) {
	metrics := observability.NewMetrics()
	n := NewNormalizer(metrics, zaptest.NewLogger(t))

	n.Normalize(`["a"]`, Captions)
	n.Normalize("a\nb", Captions)
	n.Normalize("a\nb", Captions)

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "aiverse_normalize_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "tier" {
					counts[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 1.0, counts["strict"])
	assert.Equal(t, 2.0, counts["fallback"])
}
