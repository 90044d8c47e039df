package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLogQueries(t *testing.T) {
	for _, tc := range []struct {
		input  string
		output LogQueries
		err    bool
	}{
		{"", LogQueries{}, false},
		{"none", LogQueries{}, false},
		{"all", LogQueries{Enabled: true}, false},
		{">250ms", LogQueries{Enabled: true, SlowerThan: 250 * time.Millisecond}, false},
		{">banana", LogQueries{}, true},
		{"some", LogQueries{}, true},
	} {
		t.Run(tc.input, func(t *testing.T) {
			a := assert.New(t)

			var l LogQueries
			err := l.UnmarshalText([]byte(tc.input))
			if tc.err {
				a.Error(err)
				return
			}

			a.NoError(err)
			a.Equal(tc.output, l)
		})
	}
}

func TestLevelList(t *testing.T) {
	a := assert.New(t)

	var l LevelList
	a.NoError(l.UnmarshalText([]byte("error, warning")))
	a.Equal(LevelList{logrus.ErrorLevel, logrus.WarnLevel}, l)

	d, err := l.MarshalText()
	a.NoError(err)
	a.Equal("error,warning", string(d))

	a.Error(l.UnmarshalText([]byte("loud")))

	a.NoError(l.UnmarshalText([]byte("-")))
	a.Len(l, 0)
}
