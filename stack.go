package blocktimer

import (
	"runtime"
	"slices"
	"strconv"
	"strings"
)

// Stack is an immutable snapshot of the program counters of a goroutine's call stack.
// Frames are resolved lazily, capturing only costs a runtime.Callers call.
type Stack struct {
	pcs []uintptr
}

// captureStack records up to depth frames of the current goroutine, skipping captureStack
// itself and skip additional callers.
func captureStack(skip, depth int) Stack {
	if depth <= 0 {
		return Stack{}
	}
	pcs := make([]uintptr, depth)
	// +2 skips runtime.Callers and captureStack
	n := runtime.Callers(skip+2, pcs)
	return Stack{pcs: pcs[:n:n]}
}

// Len returns the number of captured program counters.
func (s Stack) Len() int {
	return len(s.pcs)
}

// PCs returns a copy of the captured program counters.
func (s Stack) PCs() []uintptr {
	return slices.Clone(s.pcs)
}

// Frames resolves the captured program counters into frames, innermost first.
func (s Stack) Frames() []runtime.Frame {
	if len(s.pcs) == 0 {
		return nil
	}
	frames := make([]runtime.Frame, 0, len(s.pcs))
	iter := runtime.CallersFrames(s.pcs)
	for {
		frame, more := iter.Next()
		frames = append(frames, frame)
		if !more {
			break
		}
	}
	return frames
}

// Equal reports whether both stacks hold the same program counters.
func (s Stack) Equal(other Stack) bool {
	return slices.Equal(s.pcs, other.pcs)
}

// String renders the stack one frame per line, as function followed by file:line.
func (s Stack) String() string {
	var b strings.Builder
	for _, f := range s.Frames() {
		b.WriteString(f.Function)
		b.WriteString("\n\t")
		b.WriteString(f.File)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(f.Line))
		b.WriteByte('\n')
	}
	return b.String()
}
