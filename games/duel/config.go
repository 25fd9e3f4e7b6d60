/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package duel

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("invalid duel config")

// Config holds the numeric rules of a duel.
type Config struct {
	DuelTime     int           // starting seconds per player
	PassPenalty  int           // seconds taken from the active player per pass
	MaxPasses    int           // passes allowed per duel before forfeit, 0 for no limit
	SettleDelay  time.Duration // feedback display after a correct answer or pass
	HintDelay    time.Duration // time before the answer hint is revealed, 0 to disable
	PassDebounce time.Duration // confirmation delay for a pass heard in an interim transcript
	WinDisplay   time.Duration // how long the result is shown before the duel closes
	TickInterval time.Duration
	VoicePass    bool // accept "pass" spoken aloud
}

func DefaultConfig() Config {
	return Config{
		DuelTime:     45,
		PassPenalty:  2,
		MaxPasses:    3,
		SettleDelay:  1500 * time.Millisecond,
		HintDelay:    10 * time.Second,
		PassDebounce: 180 * time.Millisecond,
		WinDisplay:   4 * time.Second,
		TickInterval: time.Second,
		VoicePass:    true,
	}
}

func (c Config) Validate() error {
	switch {
	case c.DuelTime < 1:
		return fmt.Errorf("%w: duel time must be positive, got %d", ErrInvalidConfig, c.DuelTime)
	case c.PassPenalty < 0:
		return fmt.Errorf("%w: pass penalty must not be negative, got %d", ErrInvalidConfig, c.PassPenalty)
	case c.MaxPasses < 0:
		return fmt.Errorf("%w: max passes must not be negative, got %d", ErrInvalidConfig, c.MaxPasses)
	case c.TickInterval <= 0:
		return fmt.Errorf("%w: tick interval must be positive, got %s", ErrInvalidConfig, c.TickInterval)
	case c.SettleDelay < 0, c.HintDelay < 0, c.PassDebounce < 0, c.WinDisplay < 0:
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	}

	return nil
}
