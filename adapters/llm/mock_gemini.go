package llm

import (
	"context"
	"strings"

	"github.com/aiverse/server/domain/repositories"
)

// MockGemini returns canned output in the shapes the real model is asked for.
// It stands in for Gemini when no API key is configured.
type MockGemini struct{}

var _ repositories.ContentGenerator = (*MockGemini)(nil)

func NewMockGemini() *MockGemini {
	return &MockGemini{}
}

// Generate implements repositories.ContentGenerator
func (m *MockGemini) Generate(ctx context.Context, req repositories.GenerationRequest) (string, error) {
	switch {
	case req.ResponseSchema != nil:
		return `{"caption":"Chasing golden hour","song_title":"Golden Hour","song_artist":"JVKE","hashtags":["#goldenhour","#vibes"]}`, nil
	case strings.Contains(req.Prompt, "music"):
		return "```json\n" + `[{"title":"Eye of the Tiger","artist":"Survivor","genre":"Rock"},{"title":"Happy","artist":"Pharrell Williams","genre":"Pop"}]` + "\n```", nil
	default:
		return `["Living my best life ✨ #goodvibes", "Sunshine mixed with a little hurricane 🌪️ #mood", "Collect moments, not things 📸 #memories"]`, nil
	}
}
