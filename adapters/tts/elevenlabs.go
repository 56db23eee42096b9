package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/domain/repositories"
	"github.com/aiverse/server/internal/upstream"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM"   // Rachel voice
	defaultChunkSize    = 1024                     // Size of audio chunks to stream
	defaultOutputFormat = "pcm_24000"              // PCM format for real-time applications
	defaultModelID      = "eleven_multilingual_v2" // Default model ID
	defaultStability    = 0.5                      // Default voice stability
	defaultClarity      = 0.75                     // Default voice clarity/similarity_boost

	cleanupTimeout = 10 * time.Second
)

// SupportedLanguages are the language codes accepted for voice cloning
var SupportedLanguages = []string{
	"en", "es", "fr", "de", "it", "pt", "pl", "tr", "ru", "nl", "cs",
	"ar", "zh", "zh-cn", "ja", "ko", "hu", "uk", "hi", "bn", "vi",
	"sv", "fi", "no", "da", "el", "ro", "bg", "hr", "sk", "sl",
	"ms", "id", "th", "he", "ur", "fa", "ta", "te", "gu", "mr", "kn", "ml",
}

// ElevenLabsConfig holds configuration for the ElevenLabsTTS adapter
// Required fields:
// - APIKey: Your Eleven Labs API key
// Optional fields with defaults:
// - APIBaseURL: The base URL for the Eleven Labs API (default: "https://api.elevenlabs.io/v1")
// - VoiceID: The voice ID used for streaming (default: "21m00Tcm4TlvDq8ikWAM" - Rachel voice)
// - ModelID: The model ID to use (default: "eleven_multilingual_v2")
// - OutputFormat: The output format, must be pcm_<rate> (default: "pcm_24000")
// - ChunkSize: The size of audio chunks to stream (default: 1024)
// - Stability: Voice stability value between 0 and 1 (default: 0.5)
// - Clarity: Voice clarity/similarity boost value between 0 and 1 (default: 0.75)
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	ChunkSize    int
	Stability    float64
	Clarity      float64
}

// ElevenLabsTTS streams speech and clones voices through the Eleven Labs API
type ElevenLabsTTS struct {
	caller       *upstream.Caller
	apiKey       string
	apiBaseURL   string
	voiceID      string
	modelID      string
	outputFormat string
	sampleRate   int
	chunkSize    int
	stability    float64
	clarity      float64
	logger       *zap.Logger

	// engine initialisation runs once at a time; a failure is retried by the next caller
	init  singleflight.Group
	mu    sync.Mutex
	ready bool

	// cloning holds a temporary voice slot, so synthesis is serialised
	synthMu sync.Mutex
}

var (
	_ repositories.TextToSpeech = (*ElevenLabsTTS)(nil)
	_ repositories.VoiceCloner  = (*ElevenLabsTTS)(nil)
)

// ElevenLabsVoiceSettings represents voice settings for Eleven Labs API
type ElevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// ElevenLabsRequest represents the request payload for Eleven Labs TTS API
type ElevenLabsRequest struct {
	Text                   string                  `json:"text"`
	ModelID                string                  `json:"model_id"`
	LanguageCode           string                  `json:"language_code,omitempty"`
	VoiceSettings          ElevenLabsVoiceSettings `json:"voice_settings"`
	ApplyTextNormalization string                  `json:"apply_text_normalization,omitempty"`
}

type addVoiceResponse struct {
	VoiceID string `json:"voice_id"`
}

type model struct {
	ModelID           string `json:"model_id"`
	CanDoTextToSpeech bool   `json:"can_do_text_to_speech"`
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}

	// Validate stability is in the valid range
	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}

	// Validate clarity is in the valid range
	if config.Clarity != 0 && (config.Clarity < 0 || config.Clarity > 1) {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}

	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}

	if config.OutputFormat != "" {
		if _, err := parseSampleRate(config.OutputFormat); err != nil {
			return err
		}
	}

	return nil
}

// NewElevenLabsTTS creates a new Eleven Labs TTS instance
func NewElevenLabsTTS(config ElevenLabsConfig, caller *upstream.Caller, logger *zap.Logger) (*ElevenLabsTTS, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}
	if caller == nil {
		return nil, fmt.Errorf("caller is required")
	}

	// Apply defaults where needed
	apiBaseURL := strings.TrimRight(config.APIBaseURL, "/")
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", apiBaseURL))
	}

	voiceID := config.VoiceID
	if voiceID == "" {
		voiceID = defaultVoiceID
		logger.Info("Using default voice ID", zap.String("voiceID", voiceID))
	}

	modelID := config.ModelID
	if modelID == "" {
		modelID = defaultModelID
		logger.Info("Using default model ID", zap.String("modelID", modelID))
	}

	outputFormat := config.OutputFormat
	if outputFormat == "" {
		outputFormat = defaultOutputFormat
		logger.Info("Using default output format", zap.String("outputFormat", outputFormat))
	}
	sampleRate, _ := parseSampleRate(outputFormat)

	chunkSize := config.ChunkSize
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
		logger.Info("Using default chunk size", zap.Int("chunkSize", chunkSize))
	}

	stability := config.Stability
	if stability == 0 {
		stability = defaultStability
		logger.Info("Using default stability", zap.Float64("stability", stability))
	}

	clarity := config.Clarity
	if clarity == 0 {
		clarity = defaultClarity
		logger.Info("Using default clarity", zap.Float64("clarity", clarity))
	}

	return &ElevenLabsTTS{
		caller:       caller,
		apiKey:       config.APIKey,
		apiBaseURL:   apiBaseURL,
		voiceID:      voiceID,
		modelID:      modelID,
		outputFormat: outputFormat,
		sampleRate:   sampleRate,
		chunkSize:    chunkSize,
		stability:    stability,
		clarity:      clarity,
		logger:       logger,
	}, nil
}

// parseSampleRate reads the rate out of a pcm_<rate> output format
func parseSampleRate(format string) (int, error) {
	rate, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("output format must be pcm_<sample rate>, got %q", format)
	}
	n, err := strconv.Atoi(rate)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid sample rate in output format %q", format)
	}
	return n, nil
}

// SampleRate of the PCM produced by this engine
func (e *ElevenLabsTTS) SampleRate() int { return e.sampleRate }

// Languages implements repositories.VoiceCloner
func (e *ElevenLabsTTS) Languages() []string {
	return append([]string(nil), SupportedLanguages...)
}

func (e *ElevenLabsTTS) headers(accept string) map[string]string {
	h := map[string]string{"xi-api-key": e.apiKey}
	if accept != "" {
		h["Accept"] = accept
	}
	return h
}

func (e *ElevenLabsTTS) speechRequest(text, language string) ElevenLabsRequest {
	return ElevenLabsRequest{
		Text:                   text,
		ModelID:                e.modelID,
		LanguageCode:           language,
		ApplyTextNormalization: "auto",
		VoiceSettings: ElevenLabsVoiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.clarity,
			Style:           0.0,
			UseSpeakerBoost: true,
		},
	}
}

// ConvertTextToSpeech streams synthesized PCM for text. An empty voiceID uses the configured voice.
func (e *ElevenLabsTTS) ConvertTextToSpeech(ctx context.Context, text string, voiceID string) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if voiceID == "" {
		voiceID = e.voiceID
	}

	e.logger.Info("Converting text to speech",
		zap.Int("textLength", len(text)),
		zap.String("voiceID", voiceID),
		zap.String("modelID", e.modelID))

	endpoint := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s&enable_logging=false",
		e.apiBaseURL, url.PathEscape(voiceID), e.outputFormat)

	resp, err := e.caller.Open(ctx, upstream.Request{
		Method:   upstream.MethodPost,
		Endpoint: endpoint,
		Headers:  e.headers("audio/pcm"),
		Payload:  e.speechRequest(text, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start speech stream: %w", err)
	}

	audioChan := make(chan []byte, 10)

	go func() {
		defer close(audioChan)
		defer resp.Body.Close()

		buffer := make([]byte, e.chunkSize)
		totalBytes := 0
		chunkCount := 0

		for {
			n, err := resp.Body.Read(buffer)
			if n > 0 {
				totalBytes += n
				chunkCount++

				chunk := make([]byte, n)
				copy(chunk, buffer[:n])

				select {
				case audioChan <- chunk:
				case <-ctx.Done():
					e.logger.Warn("Context cancelled while sending audio chunk")
					return
				}
			}

			if err == io.EOF {
				e.logger.Info("Finished streaming audio data",
					zap.Int("totalChunks", chunkCount),
					zap.Int("totalBytes", totalBytes))
				return
			}

			if err != nil {
				e.logger.Error("Error reading response body", zap.Error(err))
				return
			}
		}
	}()

	return audioChan, nil
}

// CloneVoice registers the sample as a temporary voice, speaks the text with
// it and removes the voice again.
func (e *ElevenLabsTTS) CloneVoice(ctx context.Context, req entities.CloneRequest) (*entities.PCMAudio, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := e.ensureEngine(ctx); err != nil {
		return nil, err
	}

	e.synthMu.Lock()
	defer e.synthMu.Unlock()

	voiceID, err := e.addVoice(ctx, req)
	if err != nil {
		return nil, err
	}
	defer e.deleteVoice(ctx, voiceID)

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		e.apiBaseURL, url.PathEscape(voiceID), e.outputFormat)

	resp, err := e.caller.Call(ctx, upstream.Request{
		Method:   upstream.MethodPost,
		Endpoint: endpoint,
		Headers:  e.headers("audio/pcm"),
		Payload:  e.speechRequest(req.Text, languageCode(req.Language)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize cloned voice: %w", err)
	}

	e.logger.Info("Synthesized cloned voice",
		zap.String("language", req.Language),
		zap.Int("bytes", len(resp.Body)))

	return &entities.PCMAudio{Data: resp.Body, SampleRate: e.sampleRate}, nil
}

// ensureEngine verifies the configured model is available before first use
func (e *ElevenLabsTTS) ensureEngine(ctx context.Context) error {
	e.mu.Lock()
	ready := e.ready
	e.mu.Unlock()
	if ready {
		return nil
	}

	_, err, _ := e.init.Do("engine", func() (any, error) {
		e.mu.Lock()
		ready := e.ready
		e.mu.Unlock()
		if ready {
			return nil, nil
		}

		e.logger.Info("Loading speech engine", zap.String("modelID", e.modelID))
		if err := e.loadModel(ctx); err != nil {
			return nil, err
		}

		e.mu.Lock()
		e.ready = true
		e.mu.Unlock()
		e.logger.Info("Speech engine ready", zap.String("modelID", e.modelID))
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to initialise speech engine: %w", err)
	}
	return nil
}

func (e *ElevenLabsTTS) loadModel(ctx context.Context) error {
	resp, err := e.caller.Call(ctx, upstream.Request{
		Method:   upstream.MethodGet,
		Endpoint: e.apiBaseURL + "/models",
		Headers:  e.headers(""),
	})
	if err != nil {
		return err
	}

	var models []model
	if err := resp.Decode(&models); err != nil {
		return err
	}
	for _, m := range models {
		if m.ModelID == e.modelID {
			if !m.CanDoTextToSpeech {
				return fmt.Errorf("model %s cannot do text to speech", e.modelID)
			}
			return nil
		}
	}
	return fmt.Errorf("model %s is not available", e.modelID)
}

// Ready reports whether the engine has been initialised
func (e *ElevenLabsTTS) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

func (e *ElevenLabsTTS) addVoice(ctx context.Context, req entities.CloneRequest) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("name", "aiverse-clone-"+uuid.NewString()); err != nil {
		return "", fmt.Errorf("failed to write form field: %w", err)
	}
	sampleName := req.SampleName
	if sampleName == "" {
		sampleName = "speaker.wav"
	}
	part, err := writer.CreateFormFile("files", sampleName)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(req.Sample); err != nil {
		return "", fmt.Errorf("failed to write voice sample: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	resp, err := e.caller.Call(ctx, upstream.Request{
		Method:   upstream.MethodPost,
		Endpoint: e.apiBaseURL + "/voices/add",
		Headers:  e.headers(""),
		Payload:  upstream.RawBody{ContentType: writer.FormDataContentType(), Data: body.Bytes()},
	})
	if err != nil {
		return "", fmt.Errorf("failed to add voice: %w", err)
	}

	var added addVoiceResponse
	if err := resp.Decode(&added); err != nil {
		return "", err
	}
	if added.VoiceID == "" {
		return "", fmt.Errorf("voice add returned no voice_id")
	}
	return added.VoiceID, nil
}

func (e *ElevenLabsTTS) deleteVoice(ctx context.Context, voiceID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	_, err := e.caller.Call(ctx, upstream.Request{
		Method:      upstream.MethodDelete,
		Endpoint:    e.apiBaseURL + "/voices/" + url.PathEscape(voiceID),
		Headers:     e.headers(""),
		MaxAttempts: 2,
	})
	if err != nil {
		e.logger.Warn("Failed to delete temporary voice", zap.String("voiceID", voiceID), zap.Error(err))
	}
}

// languageCode maps a cloning language to the ISO 639-1 code the API expects
func languageCode(language string) string {
	code, _, _ := strings.Cut(strings.ToLower(language), "-")
	return code
}
