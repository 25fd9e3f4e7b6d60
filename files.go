/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
)

// byteSize prints as a decimal (SI) size, e.g. 1.5 MB.
type byteSize int64

func (b byteSize) String() string {
	const unit = 1000

	if b < unit {
		return fmt.Sprintf("%d B", int64(b))
	}

	value := float64(b)
	for _, prefix := range "kMGTPE" {
		value /= unit
		if value < unit {
			return fmt.Sprintf("%.1f %cB", value, prefix)
		}
	}

	return fmt.Sprintf("%.1f EB", value)
}

func humanReadableSize(bytes int64) string {
	return byteSize(bytes).String()
}

// audioMeter counts the microphone audio relayed during one duel.
type audioMeter struct {
	frames int
	bytes  int64
}

func (m *audioMeter) add(frame []byte) {
	m.frames++
	m.bytes += int64(len(frame))
}

func (m *audioMeter) reset() (frames int, size string) {
	frames, size = m.frames, humanReadableSize(m.bytes)
	*m = audioMeter{}

	return frames, size
}
