package entities

import (
	"errors"
	"fmt"
	"strings"
)

// Vibe is the tone requested for generated captions and music
type Vibe string

const (
	VibeMotivational  Vibe = "Motivational"
	VibeFunny         Vibe = "Funny"
	VibeRomantic      Vibe = "Romantic"
	VibeProfessional  Vibe = "Professional"
	VibeCasual        Vibe = "Casual"
	VibeInspirational Vibe = "Inspirational"
)

// Vibes lists every supported vibe in display order
var Vibes = []Vibe{VibeMotivational, VibeFunny, VibeRomantic, VibeProfessional, VibeCasual, VibeInspirational}

func (v Vibe) Valid() bool {
	for _, known := range Vibes {
		if v == known {
			return true
		}
	}
	return false
}

// Language is the output language of generated captions
type Language string

const (
	LanguageEnglish Language = "English"
	LanguageTamil   Language = "Tamil"
	LanguageHindi   Language = "Hindi"
)

var Languages = []Language{LanguageEnglish, LanguageTamil, LanguageHindi}

func (l Language) Valid() bool {
	for _, known := range Languages {
		if l == known {
			return true
		}
	}
	return false
}

// MusicSuggestion is one track recommended for a post
type MusicSuggestion struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Genre      string `json:"genre"`
	SpotifyURL string `json:"spotifyUrl,omitempty"`
}

// Complete reports whether every required field is non-blank
func (m MusicSuggestion) Complete() bool {
	return strings.TrimSpace(m.Title) != "" &&
		strings.TrimSpace(m.Artist) != "" &&
		strings.TrimSpace(m.Genre) != ""
}

// SearchQuery is the free-text query used to look the track up on a music service
func (m MusicSuggestion) SearchQuery() string {
	return strings.TrimSpace(m.Title + " " + m.Artist)
}

// Image is an uploaded picture passed to the generative model
type Image struct {
	MIMEType string
	Data     []byte
}

func (i Image) Validate() error {
	if len(i.Data) == 0 {
		return errors.New("image data is empty")
	}
	if !strings.HasPrefix(i.MIMEType, "image/") {
		return fmt.Errorf("unsupported image type %q", i.MIMEType)
	}
	return nil
}

// PostKit is the structured output of the one-shot post generator
type PostKit struct {
	Caption    string   `json:"caption"`
	SongTitle  string   `json:"song_title"`
	SongArtist string   `json:"song_artist"`
	Hashtags   []string `json:"hashtags"`
	SongURL    string   `json:"song_url,omitempty"`
}

// Song renders the recommendation as "<title> - <artist>"
func (p PostKit) Song() string {
	title := strings.TrimSpace(p.SongTitle)
	artist := strings.TrimSpace(p.SongArtist)
	if title == "" || artist == "" {
		return "No song recommendation."
	}
	return title + " - " + artist
}
