/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package duel

import (
	"fmt"
	"slices"
)

// Snapshot is the serializable state of a session, enough to resume a duel
// after a crash or page refresh.
type Snapshot struct {
	ID         string       `json:"id"`
	Tile       int          `json:"tile"`
	CategoryID string       `json:"category_id"`
	Mode       LanguageMode `json:"mode"`
	Timers     [2]int       `json:"timers"`
	Active     Player       `json:"active"`
	Started    bool         `json:"started"`
	Paused     bool         `json:"paused"`
	QuestionID string       `json:"question_id,omitempty"`
	Used       []string     `json:"used,omitempty"`
	PassCount  int          `json:"pass_count"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:         s.ID,
		Tile:       s.Tile,
		CategoryID: s.Category.ID,
		Mode:       s.Category.Mode,
		Timers:     s.timers,
		Active:     s.active,
		Started:    s.started,
		Paused:     s.paused,
		PassCount:  s.passCount,
	}

	if s.current != nil {
		snap.QuestionID = s.current.ID
	}

	for id := range s.used {
		snap.Used = append(snap.Used, id)
	}
	slices.Sort(snap.Used)

	return snap
}

// Restore rebuilds a session from a snapshot. A restored duel that had
// started comes back paused, so play resumes only when someone unpauses it.
func Restore(cfg Config, cat Category, snap Snapshot, sched Scheduler, opts ...Option) (*Session, error) {
	if snap.Active != PlayerOne && snap.Active != PlayerTwo {
		return nil, fmt.Errorf("restore duel %s: invalid active player %d", snap.ID, snap.Active)
	}
	if snap.Timers[0] < 0 || snap.Timers[1] < 0 || snap.PassCount < 0 {
		return nil, fmt.Errorf("restore duel %s: negative timer or pass count", snap.ID)
	}

	s, err := NewSession(cfg, cat, snap.Tile, sched, opts...)
	if err != nil {
		return nil, fmt.Errorf("restore duel %s: %w", snap.ID, err)
	}

	if snap.ID != "" {
		s.ID = snap.ID
	}
	s.timers = snap.Timers
	s.active = snap.Active
	s.passCount = snap.PassCount

	for _, id := range snap.Used {
		s.used[id] = true
	}

	if !snap.Started {
		return s, nil
	}

	s.started = true
	s.paused = true

	for _, q := range s.Category.Questions {
		if q.ID == snap.QuestionID {
			s.setQuestion(&q)
			return s, nil
		}
	}

	s.NextQuestion()

	return s, nil
}
