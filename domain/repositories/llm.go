package repositories

import (
	"context"

	"github.com/aiverse/server/domain/entities"
)

// ContentGenerator abstracts a multimodal generative model
type ContentGenerator interface {
	// Generate returns the model's raw text output for the request
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// GenerationRequest is a single-turn prompt with optional images
type GenerationRequest struct {
	Prompt string
	Images []entities.Image
	// ResponseSchema, when set, asks the model for a JSON object of this shape
	ResponseSchema *ObjectSchema
}

// PropertyType is the JSON type of a schema property
type PropertyType string

const (
	PropertyString      PropertyType = "string"
	PropertyStringArray PropertyType = "string_array"
)

// SchemaProperty is one field of an ObjectSchema
type SchemaProperty struct {
	Name        string
	Type        PropertyType
	Description string
	Required    bool
}

// ObjectSchema describes a flat JSON object the model must return
type ObjectSchema struct {
	Properties []SchemaProperty
}
