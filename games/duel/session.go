/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package duel implements the timed two-player question duel: clocks,
// turns, passes, forfeits, and the reconciliation of voice input with the
// duel state.
//
// A Session is not safe for concurrent use. All calls, including timer
// callbacks scheduled through its Scheduler, must run on one goroutine,
// normally a Loop.
package duel

import (
	"errors"
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Seednode/quizduel/games/answer"
)

var ErrNoQuestions = errors.New("category has no questions")

type Player int

const (
	PlayerNone Player = iota
	PlayerOne
	PlayerTwo
)

func (p Player) Other() Player {
	switch p {
	case PlayerOne:
		return PlayerTwo
	case PlayerTwo:
		return PlayerOne
	}
	return PlayerNone
}

// Source tells how a resolving action was triggered.
type Source string

const (
	SourceKeyboard Source = "keyboard"
	SourceVoice    Source = "voice"
)

type LanguageMode string

const (
	ModeSingle LanguageMode = "single"
	ModeDual   LanguageMode = "dual"
)

type Question struct {
	ID       string   `json:"id" yaml:"id"`
	Answer   string   `json:"answer" yaml:"answer"`
	Synonyms []string `json:"synonyms,omitempty" yaml:"synonyms"`
	Image    string   `json:"image,omitempty" yaml:"image"`
}

type Category struct {
	ID        string       `json:"id" yaml:"id"`
	Name      string       `json:"name" yaml:"name"`
	Icon      string       `json:"icon,omitempty" yaml:"icon"`
	Mode      LanguageMode `json:"mode" yaml:"mode"`
	Questions []Question   `json:"questions" yaml:"questions"`
}

type Phase string

const (
	PhaseNotStarted Phase = "not-started"
	PhaseRunning    Phase = "running"
	PhasePaused     Phase = "paused"
	PhaseResolved   Phase = "resolved"
	PhaseClosed     Phase = "closed"
)

type FeedbackKind string

const (
	FeedbackCorrect FeedbackKind = "correct"
	FeedbackPass    FeedbackKind = "pass"
	FeedbackTimeout FeedbackKind = "timeout"
	FeedbackForfeit FeedbackKind = "forfeit"
)

// Feedback describes the last resolving action, for display.
type Feedback struct {
	Kind   FeedbackKind `json:"kind"`
	Player Player       `json:"player"`
	Source Source       `json:"source,omitempty"`
	Answer string       `json:"answer,omitempty"`
}

type Reason string

const (
	ReasonTimeout Reason = "timeout"
	ReasonForfeit Reason = "forfeit"
	ReasonCancel  Reason = "cancel"
)

// Outcome is the result of a duel. Winner is PlayerNone for a draw or a
// cancelled duel.
type Outcome struct {
	Winner Player `json:"winner"`
	Draw   bool   `json:"draw"`
	Reason Reason `json:"reason"`
}

// Cue is a sound or light effect the session asks for.
type Cue string

const (
	CueTick     Cue = "tick"
	CueCorrect  Cue = "correct"
	CuePass     Cue = "pass"
	CueBuzzer   Cue = "buzzer"
	CueApplause Cue = "applause"
)

// Gate records which question already fired a correct answer and which
// already fired a pass. It is cleared whenever the question changes.
type Gate struct {
	Correct string
	Passed  string
}

type Option func(*Session)

func WithRand(r *rand.Rand) Option {
	return func(s *Session) {
		s.rng = r
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithChangeHandler is called after every state change.
func WithChangeHandler(fn func(*Session)) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

func WithCueHandler(fn func(Cue)) Option {
	return func(s *Session) {
		s.onCue = fn
	}
}

// WithCloseHandler is called once when the session closes, with the final
// outcome.
func WithCloseHandler(fn func(*Session, Outcome)) Option {
	return func(s *Session) {
		s.onClose = fn
	}
}

// Session is the live state of one duel.
type Session struct {
	ID       string
	Tile     int
	Category Category

	cfg    Config
	sched  Scheduler
	rng    *rand.Rand
	logger *log.Logger

	timers    [2]int
	active    Player
	started   bool
	paused    bool
	current   *Question
	passCount int
	used      map[string]bool
	profile   *answer.Profile
	gate      Gate

	// set from a correct answer or pass until the settle delay ends
	resolving bool

	hintVisible bool
	feedback    *Feedback
	outcome     *Outcome
	closed      bool

	pending  map[*task]struct{}
	tick     Timer
	settle   Timer
	hint     Timer
	attached []interface{ Stop() }

	onChange func(*Session)
	onCue    func(Cue)
	onClose  func(*Session, Outcome)
}

// NewSession creates a duel on tile for the given category. Player one
// starts. The duel does not run until Start is called.
func NewSession(cfg Config, cat Category, tile int, sched Scheduler, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cat.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	s := &Session{
		ID:       uuid.NewString(),
		Tile:     tile,
		Category: cat,
		cfg:      cfg,
		sched:    sched,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger:   log.New(io.Discard),
		timers:   [2]int{cfg.DuelTime, cfg.DuelTime},
		active:   PlayerOne,
		used:     make(map[string]bool),
		pending:  make(map[*task]struct{}),
	}

	s.Category.Questions = make([]Question, len(cat.Questions))
	copy(s.Category.Questions, cat.Questions)
	for i := range s.Category.Questions {
		if s.Category.Questions[i].ID == "" {
			s.Category.Questions[i].ID = uuid.NewString()
		}
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Session) Config() Config { return s.cfg }

func (s *Session) Active() Player { return s.active }

// Timer returns the remaining seconds of player p.
func (s *Session) Timer(p Player) int {
	if p != PlayerOne && p != PlayerTwo {
		return 0
	}
	return s.timers[p-1]
}

func (s *Session) Started() bool { return s.started }

func (s *Session) Paused() bool { return s.paused }

func (s *Session) PassCount() int { return s.passCount }

func (s *Session) HintVisible() bool { return s.hintVisible }

func (s *Session) Gate() Gate { return s.gate }

// Resolving reports whether a correct answer or pass is being shown and
// further resolving actions are blocked.
func (s *Session) Resolving() bool { return s.resolving }

// Profile is the match profile of the current question, nil if the question
// cannot be matched by voice.
func (s *Session) Profile() *answer.Profile { return s.profile }

func (s *Session) Current() (Question, bool) {
	if s.current == nil {
		return Question{}, false
	}
	return *s.current, true
}

func (s *Session) Feedback() (Feedback, bool) {
	if s.feedback == nil {
		return Feedback{}, false
	}
	return *s.feedback, true
}

func (s *Session) Outcome() (Outcome, bool) {
	if s.outcome == nil {
		return Outcome{}, false
	}
	return *s.outcome, true
}

func (s *Session) Phase() Phase {
	switch {
	case s.closed:
		return PhaseClosed
	case s.outcome != nil:
		return PhaseResolved
	case !s.started:
		return PhaseNotStarted
	case s.paused:
		return PhasePaused
	}
	return PhaseRunning
}

func (s *Session) running() bool {
	return s.started && !s.paused && s.outcome == nil && !s.closed
}

// AcceptingInput reports whether answers and passes can currently resolve
// the question.
func (s *Session) AcceptingInput() bool {
	return s.running() && !s.resolving && s.current != nil
}

// Attach registers a resource to stop when the session closes.
func (s *Session) Attach(r interface{ Stop() }) {
	if s.closed {
		r.Stop()
		return
	}
	s.attached = append(s.attached, r)
}

// Start begins the duel once the external countdown is over.
func (s *Session) Start() bool {
	if s.started || s.closed {
		return false
	}

	s.started = true
	s.paused = false
	s.NextQuestion()
	s.startTicking()

	s.logger.Debug("duel started", "duel", s.ID, "category", s.Category.Name)
	s.changed()

	return true
}

// Tick takes one second from the active player's clock. The clock holds
// while a correct answer or pass is being shown.
func (s *Session) Tick() bool {
	if !s.running() || s.resolving {
		return false
	}

	i := s.active - 1
	if s.timers[i] > 0 {
		s.timers[i]--
	}
	s.cue(CueTick)

	if s.timers[i] == 0 {
		s.timeout()
	}

	s.changed()

	return true
}

// MarkCorrect accepts a correct answer by player. It is ignored unless the
// duel is running, player is the active player and no other resolution is
// in progress for the current question.
func (s *Session) MarkCorrect(player Player, src Source) bool {
	if !s.AcceptingInput() || player != s.active {
		return false
	}

	id := s.current.ID
	if s.gate.Correct == id {
		return false
	}
	s.gate.Correct = id

	s.feedback = &Feedback{
		Kind:   FeedbackCorrect,
		Player: player,
		Source: src,
		Answer: s.current.Answer,
	}
	s.cue(CueCorrect)

	s.logger.Debug("correct", "duel", s.ID, "player", player, "question", id, "source", src)

	s.settleThen(func() {
		s.active = s.active.Other()
		s.NextQuestion()
	})

	s.changed()

	return true
}

// Pass skips the current question for the active player, at the cost of the
// pass penalty. Exceeding the pass limit forfeits the duel to the other
// player. Passing does not hand the turn over.
func (s *Session) Pass(src Source) bool {
	if !s.AcceptingInput() {
		return false
	}

	id := s.current.ID
	if s.gate.Passed == id {
		return false
	}
	s.gate.Passed = id

	i := s.active - 1
	s.timers[i] = max(0, s.timers[i]-s.cfg.PassPenalty)
	s.passCount++

	s.logger.Debug("pass", "duel", s.ID, "player", s.active, "question", id, "source", src, "passes", s.passCount)

	if s.cfg.MaxPasses > 0 && s.passCount > s.cfg.MaxPasses {
		s.feedback = &Feedback{Kind: FeedbackForfeit, Player: s.active, Source: src}
		s.resolve(Outcome{Winner: s.active.Other(), Reason: ReasonForfeit})
		s.changed()
		return true
	}

	s.feedback = &Feedback{
		Kind:   FeedbackPass,
		Player: s.active,
		Source: src,
		Answer: s.current.Answer,
	}
	s.cue(CuePass)

	if s.timers[i] == 0 {
		s.timeout()
		s.changed()
		return true
	}

	s.settleThen(func() { s.NextQuestion() })
	s.changed()

	return true
}

// NextQuestion draws a random question not yet asked in this duel. Once the
// pool is used up every question becomes eligible again.
func (s *Session) NextQuestion() bool {
	if s.closed {
		return false
	}

	pool := s.Category.Questions

	fresh := make([]int, 0, len(pool))
	for i, q := range pool {
		if !s.used[q.ID] {
			fresh = append(fresh, i)
		}
	}
	if len(fresh) == 0 {
		clear(s.used)
		for i := range pool {
			fresh = append(fresh, i)
		}
	}

	q := pool[fresh[s.rng.IntN(len(fresh))]]
	s.used[q.ID] = true
	s.setQuestion(&q)

	return true
}

func (s *Session) setQuestion(q *Question) {
	s.current = q
	s.profile = answer.NewProfile(q.Answer, q.Synonyms)
	s.gate = Gate{}
	s.hintVisible = false

	s.armHint()
}

// armHint starts the hint countdown for the current question. The hint only
// counts down while the duel runs.
func (s *Session) armHint() {
	stop(s.hint)
	s.hint = nil
	if s.cfg.HintDelay <= 0 || s.current == nil || s.hintVisible || !s.running() {
		return
	}

	s.hint = s.after(s.cfg.HintDelay, func() {
		s.hint = nil
		s.hintVisible = true
		s.changed()
	})
}

// TogglePause pauses or resumes a started duel.
func (s *Session) TogglePause() bool {
	if !s.started || s.outcome != nil || s.closed {
		return false
	}

	s.paused = !s.paused
	if s.paused {
		stop(s.tick)
		stop(s.hint)
		s.tick, s.hint = nil, nil
	} else {
		s.startTicking()
		s.armHint()
	}

	s.changed()

	return true
}

// Cancel ends the duel without a winner.
func (s *Session) Cancel() {
	if s.closed {
		return
	}
	if s.outcome == nil {
		s.outcome = &Outcome{Reason: ReasonCancel}
	}
	s.Close()
}

// Close discards the session: every pending timer is cancelled, attached
// resources are stopped and no scheduled callback runs afterwards.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	for t := range s.pending {
		t.t.Stop()
	}
	clear(s.pending)
	s.tick, s.settle, s.hint = nil, nil, nil

	for _, r := range s.attached {
		r.Stop()
	}
	s.attached = nil

	out := Outcome{Reason: ReasonCancel}
	if s.outcome != nil {
		out = *s.outcome
	}

	s.logger.Debug("duel closed", "duel", s.ID, "winner", out.Winner, "draw", out.Draw, "reason", out.Reason)

	if s.onChange != nil {
		s.onChange(s)
	}
	if s.onClose != nil {
		s.onClose(s, out)
	}
}

func (s *Session) startTicking() {
	stop(s.tick)

	var next func()
	next = func() {
		s.tick = s.after(s.cfg.TickInterval, func() {
			s.tick = nil
			s.Tick()
			if s.running() {
				next()
			}
		})
	}
	next()
}

func (s *Session) settleThen(f func()) {
	s.resolving = true

	stop(s.settle)
	s.settle = s.after(s.cfg.SettleDelay, func() {
		s.settle = nil
		s.resolving = false
		s.feedback = nil
		f()
		s.changed()
	})
}

// timeout handles the active player's clock reaching zero.
func (s *Session) timeout() {
	s.paused = true
	s.feedback = &Feedback{Kind: FeedbackTimeout, Player: s.active}
	s.cue(CueBuzzer)

	zero1, zero2 := s.timers[0] == 0, s.timers[1] == 0
	switch {
	case zero1 && zero2:
		s.resolve(Outcome{Draw: true, Reason: ReasonTimeout})
	case zero1:
		s.resolve(Outcome{Winner: PlayerTwo, Reason: ReasonTimeout})
	default:
		s.resolve(Outcome{Winner: PlayerOne, Reason: ReasonTimeout})
	}
}

func (s *Session) resolve(o Outcome) {
	if s.outcome != nil {
		return
	}
	s.outcome = &o
	s.resolving = false

	stop(s.tick)
	stop(s.settle)
	stop(s.hint)
	s.tick, s.settle, s.hint = nil, nil, nil

	if !o.Draw {
		s.cue(CueApplause)
	}

	s.logger.Info("duel resolved", "duel", s.ID, "winner", o.Winner, "draw", o.Draw, "reason", o.Reason)

	s.after(s.cfg.WinDisplay, s.Close)
}

func (s *Session) changed() {
	if s.onChange != nil && !s.closed {
		s.onChange(s)
	}
}

func (s *Session) cue(c Cue) {
	if s.onCue != nil {
		s.onCue(c)
	}
}

// task is a Timer owned by the session. Close stops every pending task.
type task struct {
	owner *Session
	t     Timer
}

func (t *task) Stop() bool {
	delete(t.owner.pending, t)
	return t.t.Stop()
}

func (s *Session) after(d time.Duration, f func()) Timer {
	t := &task{owner: s}
	t.t = s.sched.AfterFunc(d, func() {
		if _, ok := s.pending[t]; !ok || s.closed {
			return
		}
		delete(s.pending, t)
		f()
	})
	s.pending[t] = struct{}{}

	return t
}

func stop(t Timer) {
	if t != nil {
		t.Stop()
	}
}
