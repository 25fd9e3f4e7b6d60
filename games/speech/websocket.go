/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Error codes a provider may send before closing a stream.
const (
	codeNoSpeech     = "NO_SPEECH"
	codeUnauthorized = "UNAUTHORIZED"
)

// WebSocketRecognizer streams audio to a live transcription endpoint that
// speaks the common "Results" JSON protocol: binary audio frames up, JSON
// results down, with interim results enabled.
type WebSocketRecognizer struct {
	Endpoint     string
	Token        string
	Alternatives int
	Dialer       *websocket.Dialer
	Logger       *log.Logger
}

func NewWebSocketRecognizer(endpoint, token string, logger *log.Logger) *WebSocketRecognizer {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &WebSocketRecognizer{
		Endpoint:     endpoint,
		Token:        token,
		Alternatives: DefaultMaxAlternatives,
		Dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		Logger: logger,
	}
}

type wsAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type wsMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []wsAlternative `json:"alternatives"`
	} `json:"channel"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (r *WebSocketRecognizer) streamURL(lang string) (string, error) {
	u, err := url.Parse(r.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid recognition endpoint: %w", err)
	}

	q := u.Query()
	q.Set("language", lang)
	q.Set("interim_results", "true")
	if r.Alternatives > 0 {
		q.Set("alternatives", strconv.Itoa(r.Alternatives))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (r *WebSocketRecognizer) Recognize(ctx context.Context, lang string, audio <-chan []byte, emit func(Result)) error {
	target, err := r.streamURL(lang)
	if err != nil {
		return err
	}

	header := http.Header{}
	if r.Token != "" {
		header.Set("Authorization", "Token "+r.Token)
	}

	dialer := r.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if ctx.Err() != nil {
			return ErrAborted
		}
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, resp.Status)
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer conn.Close()

	r.Logger.Debug("open", "lang", lang)

	done := make(chan struct{})
	defer close(done)

	go r.pump(ctx, conn, audio, done)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			switch {
			case ctx.Err() != nil:
				return ErrAborted
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				return nil
			case websocket.IsCloseError(err, websocket.ClosePolicyViolation):
				return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
			}
			return fmt.Errorf("read transcript: %w", err)
		}

		switch msg.Type {
		case "Results":
			alts := make([]string, 0, len(msg.Channel.Alternatives))
			for _, a := range msg.Channel.Alternatives {
				if t := strings.TrimSpace(a.Transcript); t != "" {
					alts = append(alts, t)
				}
			}
			if len(alts) == 0 {
				continue
			}
			emit(Result{Alternatives: alts, Final: msg.IsFinal})
		case "Error":
			r.Logger.Warn("provider error", "lang", lang, "code", msg.Code, "description", msg.Description)
			switch msg.Code {
			case codeNoSpeech:
				return ErrNoSpeech
			case codeUnauthorized:
				return fmt.Errorf("%w: %s", ErrPermissionDenied, msg.Description)
			}
			return fmt.Errorf("provider error %s: %s", msg.Code, msg.Description)
		}
	}
}

// pump is the only writer on conn.
func (r *WebSocketRecognizer) pump(ctx context.Context, conn *websocket.Conn, audio <-chan []byte, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
			_ = conn.Close()
			return
		case pcm, ok := <-audio:
			if !ok {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
				r.Logger.Debug("write audio", "err", err)
				return
			}
		}
	}
}
