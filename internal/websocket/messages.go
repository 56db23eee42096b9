package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeSpeak      MessageType = "speak"
	MessageTypeSpeakStart MessageType = "speak_start"
	MessageTypeSpeakEnd   MessageType = "speak_end"
	MessageTypePing       MessageType = "ping"
	MessageTypePong       MessageType = "pong"
	MessageTypeError      MessageType = "error"
)

const maxSpeakTextLength = 5000

// Error codes sent in error frames
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeBusy           = "busy"
	ErrorCodeSynthesis      = "synthesis_failed"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// SpeakMessage asks the server to stream Text as PCM audio
type SpeakMessage struct {
	BaseMessage
	Text    string `json:"text"`
	VoiceID string `json:"voice_id,omitempty"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// SpeakStartMessage precedes the binary PCM frames of one utterance
type SpeakStartMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
}

// SpeakEndMessage follows the last binary frame of one utterance
type SpeakEndMessage struct {
	BaseMessage
	Bytes  int `json:"bytes"`
	Chunks int `json:"chunks"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses an incoming text frame into *SpeakMessage or *PingMessage
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeSpeak:
		var msg SpeakMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid speak message: %w", err)
		}
		if err := v.validateSpeak(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message missing type field")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func (v *MessageValidator) validateSpeak(msg *SpeakMessage) error {
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" {
		return fmt.Errorf("text is required")
	}
	if utf8.RuneCountInString(msg.Text) > maxSpeakTextLength {
		return fmt.Errorf("text must be at most %d characters", maxSpeakTextLength)
	}
	msg.VoiceID = strings.TrimSpace(msg.VoiceID)
	return nil
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{Type: MessageTypeError, Timestamp: timestamp()},
		Code:        code,
		Message:     message,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{Type: MessageTypePong, Timestamp: timestamp()},
		Data:        data,
	}
}

// CreateSpeakStartMessage announces a PCM stream at sampleRate
func CreateSpeakStartMessage(sampleRate int) *SpeakStartMessage {
	return &SpeakStartMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSpeakStart, Timestamp: timestamp()},
		SampleRate:  sampleRate,
		Encoding:    "pcm_s16le",
	}
}

// CreateSpeakEndMessage closes a PCM stream
func CreateSpeakEndMessage(bytes, chunks int) *SpeakEndMessage {
	return &SpeakEndMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSpeakEnd, Timestamp: timestamp()},
		Bytes:       bytes,
		Chunks:      chunks,
	}
}
