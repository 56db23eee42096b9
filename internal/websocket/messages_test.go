package websocket

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMessageValidator_ValidateSpeak(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name      string
		message   string
		wantError bool
	}{
		{
			name:      "valid speak message",
			message:   `{"type":"speak","text":"Hello there","voice_id":"abc"}`,
			wantError: false,
		},
		{
			name:      "speak without voice",
			message:   `{"type":"speak","text":"Hello there"}`,
			wantError: false,
		},
		{
			name:      "blank text",
			message:   `{"type":"speak","text":"   "}`,
			wantError: true,
		},
		{
			name:      "text too long",
			message:   `{"type":"speak","text":"` + strings.Repeat("a", maxSpeakTextLength+1) + `"}`,
			wantError: true,
		},
		{
			name:      "text is not a string",
			message:   `{"type":"speak","text":42}`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := validator.ValidateMessage([]byte(tt.message))

			if tt.wantError {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}

			if _, ok := msg.(*SpeakMessage); !ok {
				t.Errorf("Expected SpeakMessage, got %T", msg)
			}
		})
	}
}

func TestMessageValidator_TrimsSpeakFields(t *testing.T) {
	validator := NewMessageValidator()

	msg, err := validator.ValidateMessage([]byte(`{"type":"speak","text":"  hi  ","voice_id":" v1 "}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	speak := msg.(*SpeakMessage)
	if speak.Text != "hi" || speak.VoiceID != "v1" {
		t.Errorf("Expected trimmed fields, got %q / %q", speak.Text, speak.VoiceID)
	}
}

func TestMessageValidator_ValidatePing(t *testing.T) {
	validator := NewMessageValidator()

	msg, err := validator.ValidateMessage([]byte(`{"type":"ping","data":"test-data"}`))
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	pingMsg, ok := msg.(*PingMessage)
	if !ok {
		t.Errorf("Expected PingMessage, got %T", msg)
	}

	if pingMsg.Data != "test-data" {
		t.Errorf("Expected data 'test-data', got '%s'", pingMsg.Data)
	}
}

func TestMessageValidator_InvalidJSON(t *testing.T) {
	validator := NewMessageValidator()

	if _, err := validator.ValidateMessage([]byte(`{"type": "ping", "invalid": }`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestMessageValidator_UnsupportedMessageType(t *testing.T) {
	validator := NewMessageValidator()

	if _, err := validator.ValidateMessage([]byte(`{"type":"listening_start"}`)); err == nil {
		t.Error("Expected error for unsupported message type")
	}
	if _, err := validator.ValidateMessage([]byte(`{"text":"no type"}`)); err == nil {
		t.Error("Expected error for missing type")
	}
}

func TestCreateErrorMessage(t *testing.T) {
	errorMsg := CreateErrorMessage(ErrorCodeSynthesis, "speech synthesis failed")

	if errorMsg.Type != MessageTypeError {
		t.Errorf("Expected type %s, got %s", MessageTypeError, errorMsg.Type)
	}
	if errorMsg.Code != ErrorCodeSynthesis {
		t.Errorf("Expected code %s, got %s", ErrorCodeSynthesis, errorMsg.Code)
	}
	if errorMsg.Timestamp == "" {
		t.Error("Timestamp should not be empty")
	}
}

func TestMessageSerialization(t *testing.T) {
	data, err := json.Marshal(CreateSpeakEndMessage(2048, 3))
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if decoded["type"] != "speak_end" {
		t.Errorf("Expected type speak_end, got %v", decoded["type"])
	}
	if decoded["bytes"] != float64(2048) || decoded["chunks"] != float64(3) {
		t.Errorf("Unexpected counters: %v", decoded)
	}

	data, _ = json.Marshal(CreateSpeakStartMessage(16000))
	json.Unmarshal(data, &decoded)
	if decoded["sample_rate"] != float64(16000) {
		t.Errorf("Expected sample_rate 16000, got %v", decoded["sample_rate"])
	}
}
