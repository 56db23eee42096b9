package api

import (
	"github.com/aiverse/server/domain/entities"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// MessageResponse is the body of endpoints that only confirm an action
type MessageResponse struct {
	Message string `json:"message"`
}

// CaptionRequest represents the request payload for caption generation
type CaptionRequest struct {
	Vibe         string `json:"vibe"`
	CustomPrompt string `json:"customPrompt"`
	ImageData    string `json:"imageData"`
	Language     string `json:"language"`
}

type CaptionResponse struct {
	Captions []string `json:"captions"`
}

// MusicRequest represents the request payload for music suggestions
type MusicRequest struct {
	Vibe     string `json:"vibe"`
	Language string `json:"language"`
}

type MusicResponse struct {
	MusicSuggestions []entities.MusicSuggestion `json:"musicSuggestions"`
}

// PostResponse is the generated post kit
type PostResponse struct {
	Caption  string   `json:"caption"`
	Song     string   `json:"song"`
	SongURL  *string  `json:"song_url"`
	Hashtags []string `json:"hashtags"`
}

type LanguagesResponse struct {
	Languages []string `json:"languages"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserSummary is the short account view returned by login and /me
type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Plan   string `json:"plan"`
}

type LoginResponse struct {
	Message string      `json:"message"`
	User    UserSummary `json:"user"`
}

type UserResponse struct {
	User UserSummary `json:"user"`
}

// ProfileView is the full account view of the profile page
type ProfileView struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Email            string               `json:"email"`
	Avatar           string               `json:"avatar"`
	Plan             string               `json:"plan"`
	JoinDate         string               `json:"joinDate"`
	TotalGenerations int64                `json:"totalGenerations"`
	Preferences      entities.Preferences `json:"preferences"`
	Profile          entities.Profile     `json:"profile"`
}

type ProfileResponse struct {
	User ProfileView `json:"user"`
}

// ProfileUpdateRequest lists the editable profile fields. Anything else in the
// body (password, email, _id, createdAt) is ignored.
type ProfileUpdateRequest struct {
	Name        *string               `json:"name"`
	Avatar      *string               `json:"avatar"`
	Preferences *entities.Preferences `json:"preferences"`
	Profile     *entities.Profile     `json:"profile"`
}

func summarize(user *entities.User) UserSummary {
	plan := user.Plan
	if plan == "" {
		plan = entities.PlanFree
	}
	return UserSummary{
		ID:     user.ID.Hex(),
		Name:   user.Name,
		Email:  user.Email,
		Avatar: user.Avatar,
		Plan:   plan,
	}
}

func profileView(user *entities.User) ProfileView {
	summary := summarize(user)
	return ProfileView{
		ID:               summary.ID,
		Name:             summary.Name,
		Email:            summary.Email,
		Avatar:           summary.Avatar,
		Plan:             summary.Plan,
		JoinDate:         user.JoinDate(),
		TotalGenerations: user.TotalGenerations,
		Preferences:      user.Preferences,
		Profile:          user.Profile,
	}
}
