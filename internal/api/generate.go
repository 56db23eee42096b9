package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/usecase"
)

func (h *handlers) generateCaptions(c echo.Context) error {
	var req CaptionRequest
	if err := c.Bind(&req); err != nil {
		h.Logger.Warn("Failed to bind caption request", zap.Error(err))
		return badRequest(c, "Invalid request format")
	}
	if req.Vibe == "" || req.ImageData == "" {
		return badRequest(c, "Missing vibe or image data")
	}

	captions, err := h.Captions.Generate(c.Request().Context(), usecase.CaptionInput{
		Vibe:         entities.Vibe(req.Vibe),
		Language:     entities.Language(req.Language),
		CustomPrompt: req.CustomPrompt,
		ImageData:    req.ImageData,
		UserID:       userID(c),
	})
	if err != nil {
		return respondError(c, h.Logger, err, "No captions generated")
	}
	return c.JSON(http.StatusOK, CaptionResponse{Captions: captions})
}

func (h *handlers) musicSuggestions(c echo.Context) error {
	var req MusicRequest
	if err := c.Bind(&req); err != nil {
		h.Logger.Warn("Failed to bind music request", zap.Error(err))
		return badRequest(c, "Invalid request format")
	}
	if req.Vibe == "" {
		return badRequest(c, "Missing vibe")
	}

	music, err := h.Music.Suggest(c.Request().Context(), usecase.MusicInput{
		Vibe:     entities.Vibe(req.Vibe),
		Language: entities.Language(req.Language),
		UserID:   userID(c),
	})
	if err != nil {
		return respondError(c, h.Logger, err, "No music suggestions generated")
	}
	return c.JSON(http.StatusOK, MusicResponse{MusicSuggestions: music})
}

func (h *handlers) generatePost(c echo.Context) error {
	data, header, err := h.readFormFile(c, "image")
	if err != nil {
		if err == http.ErrMissingFile {
			return badRequest(c, "No image file provided")
		}
		return badRequest(c, err.Error())
	}
	if header.Filename == "" {
		return badRequest(c, "No selected image")
	}

	kit, err := h.Posts.Generate(c.Request().Context(), usecase.PostInput{
		Image:    data,
		MIMEType: header.Header.Get(echo.HeaderContentType),
		Text:     c.FormValue("input_text"),
		UserID:   userID(c),
	})
	if err != nil {
		return respondError(c, h.Logger, err, "Failed to parse LLM response")
	}

	resp := PostResponse{
		Caption:  kit.Caption,
		Song:     kit.Song(),
		Hashtags: kit.Hashtags,
	}
	if kit.SongURL != "" {
		resp.SongURL = &kit.SongURL
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *handlers) languages(c echo.Context) error {
	if h.Voice == nil {
		return unavailable(c, "Voice cloning")
	}
	return c.JSON(http.StatusOK, LanguagesResponse{Languages: h.Voice.Languages()})
}

func (h *handlers) cloneVoice(c echo.Context) error {
	if h.Voice == nil {
		return unavailable(c, "Voice cloning")
	}

	sample, header, err := h.readFormFile(c, "audio")
	if err != nil {
		if err == http.ErrMissingFile {
			return badRequest(c, "Missing file field 'audio'")
		}
		return badRequest(c, err.Error())
	}

	language := c.FormValue("language")
	wav, err := h.Voice.Clone(c.Request().Context(), usecase.VoiceInput{
		Sample:     sample,
		SampleName: header.Filename,
		Text:       c.FormValue("text"),
		Language:   language,
		UserID:     userID(c),
	})
	if err != nil {
		return respondError(c, h.Logger, err, "Voice cloning failed")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=output.wav")
	return c.Blob(http.StatusOK, "audio/wav", wav)
}

// readFormFile reads one uploaded file, bounded by the upload limit
func (h *handlers) readFormFile(c echo.Context, field string) ([]byte, *multipart.FileHeader, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	if header.Size > h.UploadLimit {
		return nil, nil, fmt.Errorf("file %q exceeds %d bytes", field, h.UploadLimit)
	}

	file, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.UploadLimit))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, header, nil
}
