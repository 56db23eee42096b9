// Package normalize coerces free-form generative model output into the
// caption and music suggestion shapes used by the API.
//
// Parsing is two-tier. The text is first read as strict JSON; when that fails
// a line-oriented fallback extracts whatever records it can. Neither tier
// returns an error: an empty result is a valid outcome and the caller decides
// what it means.
package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/internal/observability"
)

// Mode selects the expected output shape.
type Mode int

const (
	Captions Mode = iota
	MusicSuggestions
)

func (m Mode) String() string {
	switch m {
	case Captions:
		return "captions"
	case MusicSuggestions:
		return "music"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Tier records which parse produced a Result.
type Tier string

const (
	TierStrict   Tier = "strict"
	TierFallback Tier = "fallback"
)

// Result is the normalized output. Only the slice matching Mode is populated.
type Result struct {
	Mode     Mode
	Tier     Tier
	Captions []string
	Music    []entities.MusicSuggestion
}

// Len is the number of records in the populated slice.
func (r Result) Len() int {
	if r.Mode == MusicSuggestions {
		return len(r.Music)
	}
	return len(r.Captions)
}

func (r Result) Empty() bool { return r.Len() == 0 }

const fence = "```"

var (
	fenceOpener = regexp.MustCompile("^```[\\w+-]*\\s*")
	enumeration = regexp.MustCompile(`^[\d.\s]*`)

	// <title> - <artist> (<genre>); the separator may also be a comma or a dash
	trackWithGenre = regexp.MustCompile(`^(.*?)\s*[-,–—]\s*(.*?)\s*\((.*?)\)$`)
	// <title>, <artist>, <genre>
	trackTriple = regexp.MustCompile(`^(.*?),\s*(.*?),\s*(.*?)$`)
)

// Normalize parses raw in the given mode. It never fails; an unusable input
// yields an empty Result.
func Normalize(raw string, mode Mode) Result {
	text := StripFence(raw)

	switch mode {
	case MusicSuggestions:
		if music, ok := strictMusic(text); ok {
			return Result{Mode: mode, Tier: TierStrict, Music: music}
		}
		return Result{Mode: mode, Tier: TierFallback, Music: fallbackMusic(text)}
	default:
		if captions, ok := strictCaptions(text); ok {
			return Result{Mode: Captions, Tier: TierStrict, Captions: captions}
		}
		return Result{Mode: Captions, Tier: TierFallback, Captions: fallbackCaptions(text)}
	}
}

// CaptionList is Normalize in Captions mode.
func CaptionList(raw string) []string {
	return Normalize(raw, Captions).Captions
}

// MusicList is Normalize in MusicSuggestions mode.
func MusicList(raw string) []entities.MusicSuggestion {
	return Normalize(raw, MusicSuggestions).Music
}

// StripFence trims raw and removes one optional opening fence line (any tag)
// and one optional closing fence.
func StripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return text
	}

	if strings.HasPrefix(text, fence) {
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[idx+1:]
		} else {
			text = fenceOpener.ReplaceAllString(text, "")
		}
	}

	text = strings.TrimSpace(text)
	if strings.HasSuffix(text, fence) {
		text = strings.TrimSuffix(text, fence)
	}
	return strings.TrimSpace(text)
}

// DecodeObject strips fences and decodes a JSON object into v. When the text
// carries prose around the object, the outermost braces are tried as well.
func DecodeObject(raw string, v any) error {
	text := StripFence(raw)
	err := json.Unmarshal([]byte(text), v)
	if err == nil {
		return nil
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return fmt.Errorf("failed to decode model output: %w", err)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to decode model output: %w", err)
	}
	return nil
}

func strictCaptions(text string) ([]string, bool) {
	if !strings.HasPrefix(text, "[") {
		return nil, false
	}
	var items []string
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, false
	}

	captions := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			captions = append(captions, item)
		}
	}
	return captions, true
}

type strictTrack struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Genre  string `json:"genre"`
}

func strictMusic(text string) ([]entities.MusicSuggestion, bool) {
	if !strings.HasPrefix(text, "[") {
		return nil, false
	}
	var items []strictTrack
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, false
	}

	music := make([]entities.MusicSuggestion, 0, len(items))
	for _, item := range items {
		music = appendTrack(music, item.Title, item.Artist, item.Genre)
	}
	return music, true
}

// contentLines returns the trimmed, non-blank lines of text that are not comments.
func contentLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func fallbackCaptions(text string) []string {
	lines := contentLines(text)
	if lines == nil {
		return []string{}
	}
	return lines
}

func fallbackMusic(text string) []entities.MusicSuggestion {
	music := []entities.MusicSuggestion{}
	for _, line := range contentLines(text) {
		line = enumeration.ReplaceAllString(line, "")

		match := trackWithGenre.FindStringSubmatch(line)
		if match == nil {
			match = trackTriple.FindStringSubmatch(line)
		}
		if match == nil {
			continue
		}
		music = appendTrack(music, match[1], match[2], match[3])
	}
	return music
}

func appendTrack(music []entities.MusicSuggestion, title, artist, genre string) []entities.MusicSuggestion {
	track := entities.MusicSuggestion{
		Title:  strings.TrimSpace(title),
		Artist: strings.TrimSpace(artist),
		Genre:  strings.TrimSpace(genre),
	}
	if !track.Complete() {
		return music
	}
	return append(music, track)
}

// Normalizer wraps Normalize with logging and parse-tier metrics.
type Normalizer struct {
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewNormalizer(metrics *observability.Metrics, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{metrics: metrics, logger: logger}
}

func (n *Normalizer) Normalize(raw string, mode Mode) Result {
	result := Normalize(raw, mode)
	n.metrics.ObserveNormalize(mode.String(), string(result.Tier))

	if result.Tier == TierFallback {
		n.logger.Warn("Model output was not valid JSON, used line fallback",
			zap.Stringer("mode", mode),
			zap.Int("records", result.Len()),
			zap.Int("raw_length", len(raw)))
	}
	return result
}
