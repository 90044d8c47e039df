package logrusstackhook

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/stackutil"
)

type FilterFunc func(index int, frame runtime.Frame) bool

func RemovePathsContaining(values ...string) FilterFunc {
	return func(index int, frame runtime.Frame) bool {
		for _, value := range values {
			if strings.Contains(frame.File, value) {
				return false
			}
		}

		return true
	}
}

func RemoveFunctionsWithPrefix(values ...string) FilterFunc {
	return func(index int, frame runtime.Frame) bool {
		for _, value := range values {
			if strings.HasPrefix(frame.Function, value) {
				return false
			}
		}

		return true
	}
}

func CombineFilters(a ...FilterFunc) FilterFunc {
	return func(index int, frame runtime.Frame) bool {
		for _, fn := range a {
			if !fn(index, frame) {
				return false
			}
		}

		return true
	}
}

var (
	DefaultLevels = []logrus.Level{logrus.DebugLevel, logrus.TraceLevel}
	DefaultFilter = CombineFilters(
		RemovePathsContaining("github.com/sirupsen/logrus"),
		RemoveFunctionsWithPrefix("fknsrs.biz/p/vidshare/internal/logrusstackhook.(*StackHook)", "runtime."),
	)
)

// StackHook adds "stack.NN" fields to entries logged at the configured levels.
type StackHook struct {
	levels   []logrus.Level
	filter   FilterFunc
	maxDepth int
}

func NewStackHook(levels []logrus.Level, filter FilterFunc) *StackHook {
	if levels == nil {
		levels = DefaultLevels
	}

	if filter == nil {
		filter = DefaultFilter
	}

	return &StackHook{levels: levels, filter: filter, maxDepth: 25}
}

func (h *StackHook) Levels() []logrus.Level { return h.levels }

func (h *StackHook) Fire(e *logrus.Entry) error {
	n := 0

	for index, frame := range stackutil.GetStack(h.maxDepth+10, 0) {
		if !h.filter(index, frame) {
			continue
		}

		e.Data[fmt.Sprintf("stack.%02d", n)] = stackutil.FormatStackFrame(frame)

		n++
		if n >= h.maxDepth {
			break
		}
	}

	return nil
}
