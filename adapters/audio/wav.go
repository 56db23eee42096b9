package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/domain/repositories"
)

const wavFormatPCM = 1

// WAVEncoder writes 16-bit mono PCM into a RIFF/WAVE container
type WAVEncoder struct {
	tempDir string
	logger  *zap.Logger
}

var _ repositories.AudioEncoder = (*WAVEncoder)(nil)

// NewWAVEncoder creates an encoder that stages files under tempDir (os.TempDir when empty)
func NewWAVEncoder(tempDir string, logger *zap.Logger) *WAVEncoder {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &WAVEncoder{tempDir: tempDir, logger: logger}
}

// EncodeWAV implements repositories.AudioEncoder
func (e *WAVEncoder) EncodeWAV(pcm *entities.PCMAudio) ([]byte, error) {
	if pcm == nil || len(pcm.Data) == 0 {
		return nil, errors.New("no audio to encode")
	}
	if pcm.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", pcm.SampleRate)
	}

	workspace, err := NewWorkspace(e.tempDir)
	if err != nil {
		return nil, err
	}
	defer workspace.Remove()

	path := workspace.Path("output.wav")
	if err := writeWAV(path, pcm); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encoded audio: %w", err)
	}

	e.logger.Debug("Encoded WAV",
		zap.Int("sampleRate", pcm.SampleRate),
		zap.Int("pcmBytes", len(pcm.Data)),
		zap.Int("wavBytes", len(data)))
	return data, nil
}

func writeWAV(path string, pcm *entities.PCMAudio) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}
	defer f.Close()

	encoder := wav.NewEncoder(f, pcm.SampleRate, entities.PCMBitsPerSample, entities.PCMChannels, wavFormatPCM)

	// a trailing odd byte cannot form a sample and is dropped
	samples := make([]int, len(pcm.Data)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm.Data[i*2:])))
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: entities.PCMChannels, SampleRate: pcm.SampleRate},
		Data:           samples,
		SourceBitDepth: entities.PCMBitsPerSample,
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalise wav: %w", err)
	}
	return nil
}

// Workspace is a per-request scratch directory
type Workspace struct {
	dir string
}

// NewWorkspace creates a uniquely named directory under base
func NewWorkspace(base string) (*Workspace, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "aiverse_"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string { return w.dir }

// Path joins name onto the workspace directory, keeping only its base name
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// Save writes data to name inside the workspace and returns the full path
func (w *Workspace) Save(name string, data []byte) (string, error) {
	path := w.Path(name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", filepath.Base(name), err)
	}
	return path, nil
}

func (w *Workspace) Remove() error {
	return os.RemoveAll(w.dir)
}
