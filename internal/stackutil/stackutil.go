package stackutil

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

func GetStack(depth, skip int) []runtime.Frame {
	pc := make([]uintptr, depth)

	// skip runtime.Callers and this function
	n := runtime.Callers(skip+2, pc)
	if n == 0 {
		return []runtime.Frame{}
	}

	frames := runtime.CallersFrames(pc[:n])

	var a []runtime.Frame

	for {
		frame, more := frames.Next()

		a = append(a, frame)

		if !more {
			break
		}
	}

	return a
}

func FormatStack(a []runtime.Frame) []string {
	r := make([]string, len(a))
	for i, e := range a {
		r[i] = FormatStackFrame(e)
	}
	return r
}

func FormatStackFrame(f runtime.Frame) string {
	return fmt.Sprintf("%s:%d: %s", shortFile(f.File), f.Line, f.Function)
}

// shortFile keeps the last two path elements so frames stay readable in logs.
func shortFile(name string) string {
	dir, file := filepath.Split(name)
	dir = strings.TrimSuffix(dir, string(filepath.Separator))

	if dir == "" {
		return file
	}

	return filepath.Join(filepath.Base(dir), file)
}
