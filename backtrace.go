package faultline

import (
	"runtime"
	"strings"
)

// Frame is a single backtrace entry.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// stackTracer is implemented by error values that carry their own backtrace.
// Errors that do not implement it get a synthesized trace from the calling
// goroutine's stack.
type stackTracer interface {
	Stack() []Frame
}

const modulePath = "github.com/example/faultline"

// captureStack records the calling goroutine's stack and strips the leading
// frames that belong to this module, so the first visible frame points at
// the call site. If stripping would remove every frame the untrimmed stack
// is kept instead.
func captureStack(skip int) []Frame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	var all []Frame
	for {
		fr, more := frames.Next()
		all = append(all, Frame{File: fr.File, Line: fr.Line, Function: fr.Function})
		if !more {
			break
		}
	}

	trimmed := stripOwnFrames(all)
	if len(trimmed) == 0 {
		return all
	}
	return trimmed
}

func stripOwnFrames(frames []Frame) []Frame {
	i := 0
	for i < len(frames) && isOwnFrame(frames[i]) {
		i++
	}
	return frames[i:]
}

func isOwnFrame(f Frame) bool {
	if !strings.HasPrefix(f.Function, modulePath) {
		return false
	}
	// Test functions live in the module too but are caller territory.
	return !strings.Contains(f.Function, "_test")
}
