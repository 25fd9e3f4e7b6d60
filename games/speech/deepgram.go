/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package speech

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
)

const DefaultDeepgramModel = "nova-2"

// DeepgramRecognizer streams audio to Deepgram's live transcription API.
// The browser sends containerized opus, so no raw encoding is declared.
type DeepgramRecognizer struct {
	APIKey       string
	Host         string
	Model        string
	Alternatives int
	Logger       *log.Logger
}

func NewDeepgramRecognizer(apiKey, host string, logger *log.Logger) *DeepgramRecognizer {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &DeepgramRecognizer{
		APIKey:       apiKey,
		Host:         host,
		Model:        DefaultDeepgramModel,
		Alternatives: DefaultMaxAlternatives,
		Logger:       logger,
	}
}

func (r *DeepgramRecognizer) Recognize(ctx context.Context, lang string, audio <-chan []byte, emit func(Result)) error {
	cOptions := &interfaces.ClientOptions{
		Host:            r.Host,
		EnableKeepAlive: true,
	}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          r.Model,
		Language:       lang,
		InterimResults: true,
		Alternatives:   r.Alternatives,
	}

	h := newDeepgramHandler(lang, emit, r.Logger)
	defer h.detach()

	client, err := listen.NewWebSocket(ctx, r.APIKey, cOptions, tOptions, h)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if !client.Connect() {
		if ctx.Err() != nil {
			return ErrAborted
		}
		return fmt.Errorf("%w: could not connect to deepgram", ErrNetwork)
	}
	defer client.Stop()

	return h.pump(ctx, audio, client.WriteBinary)
}

// deepgramHandler receives the SDK callbacks for one stream. Results that
// arrive after the stream was detached are dropped.
type deepgramHandler struct {
	lang     string
	emit     func(Result)
	logger   *log.Logger
	detached atomic.Bool

	once sync.Once
	done chan error
}

func newDeepgramHandler(lang string, emit func(Result), logger *log.Logger) *deepgramHandler {
	return &deepgramHandler{
		lang:   lang,
		emit:   emit,
		logger: logger,
		done:   make(chan error, 1),
	}
}

func (h *deepgramHandler) finish(err error) {
	h.once.Do(func() { h.done <- err })
}

func (h *deepgramHandler) detach() {
	h.detached.Store(true)
}

// pump forwards audio until the stream ends or ctx is done.
func (h *deepgramHandler) pump(ctx context.Context, audio <-chan []byte, write func([]byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return ErrAborted
		case err := <-h.done:
			return err
		case pcm, ok := <-audio:
			if !ok {
				return nil
			}
			if err := write(pcm); err != nil {
				h.logger.Debug("write audio", "lang", h.lang, "err", err)
			}
		}
	}
}

func (h *deepgramHandler) Open(*api.OpenResponse) error {
	h.logger.Debug("open", "kind", "deepgram", "lang", h.lang)
	return nil
}

func (h *deepgramHandler) Message(mr *api.MessageResponse) error {
	if h.detached.Load() {
		return nil
	}

	alts := make([]string, 0, len(mr.Channel.Alternatives))
	for _, a := range mr.Channel.Alternatives {
		if t := strings.TrimSpace(a.Transcript); t != "" {
			alts = append(alts, t)
		}
	}
	if len(alts) == 0 {
		return nil
	}

	h.emit(Result{Alternatives: alts, Final: mr.IsFinal})

	return nil
}

func (h *deepgramHandler) Metadata(*api.MetadataResponse) error { return nil }

func (h *deepgramHandler) SpeechStarted(*api.SpeechStartedResponse) error { return nil }

func (h *deepgramHandler) UtteranceEnd(*api.UtteranceEndResponse) error { return nil }

func (h *deepgramHandler) Close(cr *api.CloseResponse) error {
	h.logger.Debug("closed", "lang", h.lang, "reason", cr.Type)
	h.finish(nil)
	return nil
}

func (h *deepgramHandler) Error(er *api.ErrorResponse) error {
	h.logger.Warn("provider error", "lang", h.lang, "type", er.Type, "description", er.Description)
	h.finish(deepgramError(er.Type, er.Description))
	return nil
}

func (h *deepgramHandler) UnhandledEvent(data []byte) error {
	h.logger.Debug("unhandled event", "lang", h.lang, "data", string(data))
	return nil
}

// deepgramError maps a provider error onto the stream faults. Deepgram closes
// streams that stop receiving audio with NET-0001.
func deepgramError(kind, description string) error {
	text := strings.ToLower(kind + " " + description)

	switch {
	case strings.Contains(text, "net-0001"), strings.Contains(text, "no_speech"), strings.Contains(text, "no speech"):
		return ErrNoSpeech
	case strings.Contains(text, "401"), strings.Contains(text, "403"),
		strings.Contains(text, "unauthorized"), strings.Contains(text, "invalid_auth"), strings.Contains(text, "insufficient_permissions"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, description)
	}

	return fmt.Errorf("deepgram error %s: %s", kind, description)
}
