/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package duel

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/Seednode/quizduel/games/answer"
)

// Controller turns transcripts into duel actions. It implements
// speech.Listener and must receive events on the session's goroutine.
//
// Speech engines deliver the same utterance several times: as a growing
// interim transcript, as a final transcript, and once per recognition
// stream. The session gate makes sure each question resolves at most once,
// and a pass heard only in an interim transcript is confirmed after a short
// debounce, cancelled as soon as the transcript stops being a pass.
type Controller struct {
	s      *Session
	logger *log.Logger

	pass Timer // pending interim pass confirmation
}

func NewController(s *Session, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Controller{
		s:      s,
		logger: logger,
	}
}

func (c *Controller) OnInterim(text string) {
	c.Handle(text, false)
}

func (c *Controller) OnFinal(text string) {
	c.Handle(text, true)
}

// PassPending reports whether an interim pass is waiting for confirmation.
func (c *Controller) PassPending() bool {
	return c.pass != nil
}

// Handle processes one transcript.
func (c *Controller) Handle(text string, final bool) {
	s := c.s

	if !s.AcceptingInput() {
		return
	}

	id := s.current.ID
	if s.gate.Passed == id {
		c.cancelPass()
		return
	}

	if s.cfg.VoicePass && answer.IsPassCommand(text) {
		if final {
			c.cancelPass()
			c.firePass()
			return
		}

		if c.pass != nil {
			return
		}

		c.logger.Debug("pass heard, confirming", "duel", s.ID, "text", text)

		c.pass = s.after(s.cfg.PassDebounce, func() {
			c.pass = nil
			if s.AcceptingInput() {
				c.firePass()
			}
		})

		return
	}

	c.cancelPass()

	if s.gate.Correct == id || s.profile == nil {
		return
	}

	if s.profile.Match(text, !final) {
		c.logger.Debug("answer heard", "duel", s.ID, "text", text, "final", final)
		s.MarkCorrect(s.active, SourceVoice)
	}
}

// firePass passes the question that is current right now.
func (c *Controller) firePass() {
	s := c.s
	if s.current == nil || s.gate.Passed == s.current.ID {
		return
	}

	s.Pass(SourceVoice)
}

func (c *Controller) cancelPass() {
	if c.pass == nil {
		return
	}

	c.pass.Stop()
	c.pass = nil

	c.logger.Debug("pending pass cancelled", "duel", c.s.ID)
}
