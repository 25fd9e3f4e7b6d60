/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package speech runs live speech recognition streams and merges their
// transcripts into a single interim/final event feed.
package speech

import (
	"context"
	"errors"
)

// Stream faults. ErrNoSpeech and ErrAborted are routine and only cause a
// restart; ErrPermissionDenied and ErrNetwork are reported to the caller.
var (
	ErrNoSpeech         = errors.New("speech: no speech detected")
	ErrAborted          = errors.New("speech: recognition aborted")
	ErrPermissionDenied = errors.New("speech: permission denied")
	ErrNetwork          = errors.New("speech: network unavailable")
)

// Result is one message from a recognition stream. Alternatives are ordered
// by confidence, best first.
type Result struct {
	Alternatives []string
	Final        bool
}

// Recognizer runs a single recognition stream for one language.
//
// Recognize blocks until the stream ends, reading audio until ctx is done and
// calling emit for each result in arrival order. It returns nil when the
// provider closed the stream normally. Audio slices are shared between
// streams and must not be modified.
type Recognizer interface {
	Recognize(ctx context.Context, lang string, audio <-chan []byte, emit func(Result)) error
}

// Listener receives merged transcripts.
type Listener interface {
	OnInterim(text string)
	OnFinal(text string)
}

// IsFatal reports whether err should stop a stream instead of restarting it.
func IsFatal(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNetwork)
}
