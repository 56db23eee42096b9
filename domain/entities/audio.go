package entities

import (
	"errors"
	"strings"
)

// CloneRequest asks for text spoken in the voice of Sample
type CloneRequest struct {
	Sample     []byte
	SampleName string
	Text       string
	Language   string
}

func (r CloneRequest) Validate() error {
	if len(r.Sample) == 0 {
		return errors.New("voice sample is empty")
	}
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("text is required")
	}
	return nil
}

// PCMAudio is signed 16-bit little-endian mono audio
type PCMAudio struct {
	Data       []byte
	SampleRate int
}

const (
	PCMChannels      = 1
	PCMBitsPerSample = 16
)

// Duration in seconds
func (a *PCMAudio) Duration() float64 {
	if a == nil || a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.Data)/2) / float64(a.SampleRate)
}
