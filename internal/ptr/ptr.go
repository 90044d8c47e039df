package ptr

import (
	"time"
)

func To[T any](v T) *T { return &v }

func String(v string) *string     { return &v }
func Int(v int) *int              { return &v }
func Time(v time.Time) *time.Time { return &v }

// Deref returns the pointed-to value, or def if p is nil.
func Deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}

	return *p
}
