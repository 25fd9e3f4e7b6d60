/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package speech

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Seednode/quizduel/games/answer"
)

const (
	DefaultRestartBackoff  = 300 * time.Millisecond
	DefaultDedupWindow     = 600 * time.Millisecond
	DefaultMaxAlternatives = 3

	audioQueue = 64
)

// Option configures a Multiplexer.
type Option func(*Multiplexer)

// WithDispatcher sets the function used to deliver listener callbacks and
// error reports. The default calls them directly on the stream goroutine.
// Callers that stop the multiplexer from their own goroutine should pass a
// dispatcher running on that goroutine, see Stop.
func WithDispatcher(dispatch func(func())) Option {
	return func(m *Multiplexer) {
		m.dispatch = dispatch
	}
}

// WithErrorHandler sets a callback for faults that stopped a stream.
func WithErrorHandler(fn func(lang string, err error)) Option {
	return func(m *Multiplexer) {
		m.onError = fn
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(m *Multiplexer) {
		m.logger = logger
	}
}

func WithRestartBackoff(d time.Duration) Option {
	return func(m *Multiplexer) {
		m.backoff = d
	}
}

func WithDedupWindow(d time.Duration) Option {
	return func(m *Multiplexer) {
		m.window = d
	}
}

// Multiplexer keeps one recognition stream per language alive while active
// and forwards their transcripts to a Listener.
type Multiplexer struct {
	rec      Recognizer
	listener Listener
	dispatch func(func())
	onError  func(string, error)
	logger   *log.Logger
	backoff  time.Duration
	window   time.Duration
	maxAlts  int
	now      func() time.Time

	mu      sync.Mutex
	langs   []string
	active  bool
	stopped bool
	streams map[string]*stream
	recent  map[string]sighting
	err     error
}

type stream struct {
	lang    string
	cancel  context.CancelFunc
	audio   chan []byte
	done    chan struct{}
	interim string
}

type sighting struct {
	lang string
	at   time.Time
}

func NewMultiplexer(rec Recognizer, listener Listener, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		rec:      rec,
		listener: listener,
		dispatch: func(f func()) { f() },
		logger:   log.New(io.Discard),
		backoff:  DefaultRestartBackoff,
		window:   DefaultDedupWindow,
		maxAlts:  DefaultMaxAlternatives,
		now:      time.Now,
		streams:  make(map[string]*stream),
		recent:   make(map[string]sighting),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// SetLanguages replaces the set of languages to recognize. Running streams
// for languages no longer wanted are stopped and new ones started.
func (m *Multiplexer) SetLanguages(langs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.langs = m.langs[:0]
	for _, l := range langs {
		l = strings.TrimSpace(l)
		if l == "" || slices.Contains(m.langs, l) {
			continue
		}
		m.langs = append(m.langs, l)
	}

	m.reconcileLocked()
}

// Languages returns the configured languages.
func (m *Multiplexer) Languages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.langs)
}

// SetActive starts or stops recognition. Activating again after a fatal
// fault clears the fault and restarts the failed streams.
func (m *Multiplexer) SetActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	m.active = active
	if active {
		m.err = nil
		m.reconcileLocked()
		return
	}

	m.stopAllLocked()
}

func (m *Multiplexer) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.active && !m.stopped
}

// Err returns the last fatal fault, or nil.
func (m *Multiplexer) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.err
}

// Feed hands an audio frame to every running stream. Frames are dropped for
// streams that are not keeping up.
func (m *Multiplexer) Feed(pcm []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.streams {
		select {
		case s.audio <- pcm:
		default:
			m.logger.Debug("audio dropped", "lang", s.lang)
		}
	}
}

// Stop shuts down every stream permanently. No callback fires afterwards
// when Stop runs on the dispatch goroutine, including from inside a
// listener callback. With the default direct dispatcher a callback that is
// already being delivered on a stream goroutine may still finish after Stop
// returns.
func (m *Multiplexer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	m.active = false
	m.stopAllLocked()
}

func (m *Multiplexer) reconcileLocked() {
	if !m.active || m.stopped {
		return
	}

	for lang, s := range m.streams {
		if !slices.Contains(m.langs, lang) {
			m.stopStreamLocked(s)
		}
	}

	for _, lang := range m.langs {
		if _, ok := m.streams[lang]; !ok {
			m.startLocked(lang)
		}
	}
}

func (m *Multiplexer) startLocked(lang string) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &stream{
		lang:   lang,
		cancel: cancel,
		audio:  make(chan []byte, audioQueue),
		done:   make(chan struct{}),
	}
	m.streams[lang] = s

	m.logger.Debug("stream started", "lang", lang)

	go m.run(ctx, s)
}

func (m *Multiplexer) stopStreamLocked(s *stream) {
	s.cancel()
	delete(m.streams, s.lang)

	m.logger.Debug("stream stopped", "lang", s.lang)
}

func (m *Multiplexer) stopAllLocked() {
	for _, s := range m.streams {
		m.stopStreamLocked(s)
	}
	clear(m.recent)
}

func (m *Multiplexer) live(s *stream) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return !m.stopped && m.streams[s.lang] == s
}

func (m *Multiplexer) run(ctx context.Context, s *stream) {
	defer close(s.done)

	for {
		err := m.rec.Recognize(ctx, s.lang, s.audio, func(r Result) {
			m.handle(s, r)
		})
		if ctx.Err() != nil {
			return
		}

		if IsFatal(err) {
			m.fail(s, err)
			return
		}

		if err != nil {
			m.logger.Debug("stream ended", "lang", s.lang, "err", err)
		}

		m.mu.Lock()
		s.interim = ""
		m.mu.Unlock()

		t := time.NewTimer(m.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (m *Multiplexer) fail(s *stream, err error) {
	m.mu.Lock()
	if m.streams[s.lang] != s {
		m.mu.Unlock()
		return
	}
	delete(m.streams, s.lang)
	m.err = err
	m.mu.Unlock()

	m.logger.Warn("stream failed", "lang", s.lang, "err", err)

	if m.onError == nil {
		return
	}

	m.dispatch(func() {
		m.mu.Lock()
		stopped := m.stopped
		m.mu.Unlock()

		if !stopped {
			m.onError(s.lang, err)
		}
	})
}

func (m *Multiplexer) handle(s *stream, r Result) {
	if len(r.Alternatives) == 0 {
		return
	}

	if !r.Final {
		text := strings.TrimSpace(r.Alternatives[0])

		m.mu.Lock()
		if text == "" || text == s.interim || m.streams[s.lang] != s {
			m.mu.Unlock()
			return
		}
		s.interim = text
		dup := m.duplicateLocked(s, "interim", text)
		m.mu.Unlock()

		if !dup {
			m.deliver(s, func() { m.listener.OnInterim(text) })
		}

		return
	}

	m.mu.Lock()
	s.interim = ""
	m.mu.Unlock()

	alts := r.Alternatives
	if len(alts) > m.maxAlts {
		alts = alts[:m.maxAlts]
	}

	for _, alt := range alts {
		text := strings.TrimSpace(alt)
		if text == "" {
			continue
		}

		m.mu.Lock()
		dup := m.streams[s.lang] != s || m.duplicateLocked(s, "final", text)
		m.mu.Unlock()

		if !dup {
			m.deliver(s, func() { m.listener.OnFinal(text) })
		}
	}
}

// duplicateLocked reports whether another stream produced the same text
// within the dedup window. Only applies while several streams run.
func (m *Multiplexer) duplicateLocked(s *stream, kind, text string) bool {
	if len(m.streams) < 2 {
		return false
	}

	norm := answer.Normalize(text)
	if norm == "" {
		return false
	}

	now := m.now()
	for k, v := range m.recent {
		if now.Sub(v.at) >= m.window {
			delete(m.recent, k)
		}
	}

	key := kind + ":" + norm
	if prev, ok := m.recent[key]; ok && prev.lang != s.lang {
		return true
	}

	m.recent[key] = sighting{lang: s.lang, at: now}

	return false
}

func (m *Multiplexer) deliver(s *stream, f func()) {
	m.dispatch(func() {
		if m.live(s) {
			f()
		}
	})
}
