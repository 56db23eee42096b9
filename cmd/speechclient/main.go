package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aiverse/server/adapters/audio"
	"github.com/aiverse/server/domain/entities"
	ws "github.com/aiverse/server/internal/websocket"
)

type options struct {
	server  string
	token   string
	text    string
	voiceID string
	out     string
	timeout time.Duration
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:          "speechclient [text]",
		Short:        "Stream speech from the AIVerse server into a WAV file",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.text = args[0]
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			return run(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "ws://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&opts.token, "token", os.Getenv("AIVERSE_TOKEN"), "Bearer token (optional)")
	cmd.Flags().StringVar(&opts.text, "text", "Hello from AIVerse!", "Text to speak")
	cmd.Flags().StringVar(&opts.voiceID, "voice", "", "Voice id, empty for the server default")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "speech.wav", "Output WAV file")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Overall timeout")
	return cmd
}

func run(ctx context.Context, opts options) error {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	endpoint, err := speechURL(opts.server)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	headers := http.Header{}
	if opts.token != "" {
		headers.Set("Authorization", "Bearer "+opts.token)
	}

	logger.Info("Connecting", zap.String("url", endpoint))
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket connection failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket connection failed: %w", err)
	}
	defer conn.Close()

	pcm, err := speak(ctx, conn, opts.text, opts.voiceID)
	if err != nil {
		return err
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	data, err := audio.NewWAVEncoder("", logger).EncodeWAV(pcm)
	if err != nil {
		return fmt.Errorf("failed to encode WAV: %w", err)
	}
	if err := os.WriteFile(opts.out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	logger.Info("Saved speech",
		zap.String("file", opts.out),
		zap.Int("sample_rate", pcm.SampleRate),
		zap.Float64("seconds", pcm.Duration()))
	return nil
}

// speechURL turns a server base URL into the speech stream endpoint
func speechURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/api/v1/ws/speech"
	return u.String(), nil
}

// speak sends one utterance request and gathers the PCM frames until speak_end
func speak(ctx context.Context, conn *websocket.Conn, text, voiceID string) (*entities.PCMAudio, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	request := ws.SpeakMessage{
		BaseMessage: ws.BaseMessage{Type: ws.MessageTypeSpeak, Timestamp: time.Now().Format(time.RFC3339)},
		Text:        text,
		VoiceID:     voiceID,
	}
	if err := conn.WriteJSON(request); err != nil {
		return nil, fmt.Errorf("failed to send speak request: %w", err)
	}

	pcm := &entities.PCMAudio{}
	started := false
	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}

		if kind == websocket.BinaryMessage {
			if !started {
				return nil, errors.New("audio frame before speak_start")
			}
			pcm.Data = append(pcm.Data, payload...)
			continue
		}

		var base ws.BaseMessage
		if err := json.Unmarshal(payload, &base); err != nil {
			return nil, fmt.Errorf("failed to decode frame: %w", err)
		}

		switch base.Type {
		case ws.MessageTypeSpeakStart:
			var start ws.SpeakStartMessage
			if err := json.Unmarshal(payload, &start); err != nil {
				return nil, fmt.Errorf("failed to decode speak_start: %w", err)
			}
			pcm.SampleRate = start.SampleRate
			started = true
		case ws.MessageTypeSpeakEnd:
			var end ws.SpeakEndMessage
			if err := json.Unmarshal(payload, &end); err != nil {
				return nil, fmt.Errorf("failed to decode speak_end: %w", err)
			}
			if end.Bytes != len(pcm.Data) {
				return nil, fmt.Errorf("received %d bytes, server sent %d", len(pcm.Data), end.Bytes)
			}
			return pcm, nil
		case ws.MessageTypeError:
			var msg ws.ErrorMessage
			_ = json.Unmarshal(payload, &msg)
			return nil, fmt.Errorf("server error %s: %s", msg.Code, msg.Message)
		}
	}
}
