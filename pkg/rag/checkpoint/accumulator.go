// Package checkpoint tracks streamed assistant text and persists partial
// snapshots while a turn is generating.
package checkpoint

import (
	"strings"
	"unicode/utf8"
)

const DefaultInterval = 500

// Accumulator collects deltas for one turn. Lengths are in code points.
// It is not safe for concurrent use; the streaming goroutine owns it.
type Accumulator struct {
	interval int
	buf      strings.Builder
	length   int
	lastMark int
}

func NewAccumulator(interval int) *Accumulator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Accumulator{interval: interval}
}

// Feed appends delta and reports whether a checkpoint is due, meaning at
// least one interval has accrued since the last mark.
func (a *Accumulator) Feed(delta string) bool {
	if delta == "" {
		return false
	}
	a.buf.WriteString(delta)
	a.length += utf8.RuneCountInString(delta)
	return a.length-a.lastMark >= a.interval
}

// Mark records the current length as checkpointed and returns it.
func (a *Accumulator) Mark() int {
	a.lastMark = a.length
	return a.lastMark
}

func (a *Accumulator) Text() string { return a.buf.String() }

func (a *Accumulator) Len() int { return a.length }

func (a *Accumulator) LastCheckpointLength() int { return a.lastMark }
