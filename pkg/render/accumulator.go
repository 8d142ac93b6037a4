package render

import (
	"strings"

	"github.com/go-go-golems/duet/pkg/steps/ai/chat"
)

// Accumulator folds stream chunks into the text of the answer so far.
type Accumulator interface {
	Add(chunk string)
	Text() string
}

// DeltaAccumulator concatenates chunks.
type DeltaAccumulator struct {
	sb strings.Builder
}

func (a *DeltaAccumulator) Add(chunk string) {
	a.sb.WriteString(chunk)
}

func (a *DeltaAccumulator) Text() string {
	return a.sb.String()
}

// ReplaceAccumulator keeps the most recent chunk, each one being the full answer so far.
type ReplaceAccumulator struct {
	last string
}

func (a *ReplaceAccumulator) Add(chunk string) {
	a.last = chunk
}

func (a *ReplaceAccumulator) Text() string {
	return a.last
}

// NewAccumulator returns the accumulator matching mode. Unknown modes are treated as delta streams.
func NewAccumulator(mode chat.StreamMode) Accumulator {
	if mode == chat.StreamModeReplace {
		return &ReplaceAccumulator{}
	}
	return &DeltaAccumulator{}
}

// Delta returns what next adds to prev. When next does not extend prev, all of next is new.
func Delta(prev string, next string) string {
	if strings.HasPrefix(next, prev) {
		return next[len(prev):]
	}
	return next
}
