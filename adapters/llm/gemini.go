package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/aiverse/server/domain/repositories"
	"github.com/aiverse/server/internal/upstream"
)

const (
	upstreamName          = "gemini"
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.9
	defaultMaxTokens      = 1024
	defaultTimeoutSeconds = 30
)

// GeminiConfig holds configuration for the Gemini adapter
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int
	TimeoutSeconds  int
}

// contentModel is the subset of *genai.Models used here
type contentModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiLLM implements ContentGenerator using Google's Gemini API
type GeminiLLM struct {
	models          contentModel
	retrier         *upstream.Retrier
	logger          *zap.Logger
	model           string
	temperature     float32
	maxOutputTokens int
	timeout         time.Duration
}

var _ repositories.ContentGenerator = (*GeminiLLM)(nil)

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("max output tokens must be positive, got %d", config.MaxOutputTokens)
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	return nil
}

// NewGeminiLLM creates a new Gemini client
func NewGeminiLLM(ctx context.Context, config GeminiConfig, retrier *upstream.Retrier, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiLLM(client.Models, config, retrier, logger), nil
}

func newGeminiLLM(models contentModel, config GeminiConfig, retrier *upstream.Retrier, logger *zap.Logger) *GeminiLLM {
	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
		logger.Info("Using default temperature", zap.Float32("temperature", temperature))
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
		logger.Info("Using default maxOutputTokens", zap.Int("maxOutputTokens", maxOutputTokens))
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
		logger.Info("Using default timeoutSeconds", zap.Int("timeoutSeconds", timeoutSeconds))
	}

	if retrier == nil {
		retrier = upstream.NewRetrier(upstream.RetryConfig{}, logger)
	}

	return &GeminiLLM{
		models:          models,
		retrier:         retrier,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
		timeout:         time.Duration(timeoutSeconds) * time.Second,
	}
}

// Generate sends one prompt (with any images) and returns the concatenated text parts
func (g *GeminiLLM) Generate(ctx context.Context, req repositories.GenerationRequest) (string, error) {
	if req.Prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, image := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(image.Data, image.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: int32(g.maxOutputTokens),
	}
	if req.ResponseSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = convertSchema(req.ResponseSchema)
	}

	var text string
	err := g.retrier.Do(ctx, upstreamName, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		response, err := g.models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			return classify(err)
		}
		text = response.Text()
		return nil
	})
	if err != nil {
		g.logger.Error("Failed to generate content", zap.String("model", g.model), zap.Error(err))
		return "", err
	}

	g.logger.Info("Generated content",
		zap.String("model", g.model),
		zap.Int("images", len(req.Images)),
		zap.Bool("structured", req.ResponseSchema != nil),
		zap.Int("response_length", len(text)))
	return text, nil
}

// classify marks client errors other than rate limiting as not retryable
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
			return upstream.Permanent(fmt.Errorf("gemini rejected request: %w", err))
		}
		return &upstream.StatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return fmt.Errorf("failed to generate content: %w", err)
}

func convertSchema(schema *repositories.ObjectSchema) *genai.Schema {
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(schema.Properties)),
	}
	for _, prop := range schema.Properties {
		field := &genai.Schema{Type: genai.TypeString, Description: prop.Description}
		if prop.Type == repositories.PropertyStringArray {
			field = &genai.Schema{
				Type:        genai.TypeArray,
				Description: prop.Description,
				Items:       &genai.Schema{Type: genai.TypeString},
			}
		}
		out.Properties[prop.Name] = field
		out.PropertyOrdering = append(out.PropertyOrdering, prop.Name)
		if prop.Required {
			out.Required = append(out.Required, prop.Name)
		}
	}
	return out
}
