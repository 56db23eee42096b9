package usecase

import "errors"

var (
	ErrInvalidVibe     = errors.New("invalid vibe selected")
	ErrInvalidLanguage = errors.New("invalid language selected")
	ErrInvalidImage    = errors.New("failed to process image")
	ErrInvalidInput    = errors.New("invalid input")

	// ErrNoResult means the model answered but nothing usable survived normalization
	ErrNoResult = errors.New("no usable result")

	ErrUnsupportedVoiceLanguage = errors.New("unsupported language")

	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)
