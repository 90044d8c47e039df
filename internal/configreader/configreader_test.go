package configreader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type testConfig struct {
	Config   string        `name:"config"`
	Name     string        `name:"name"`
	Enabled  bool          `name:"enabled"`
	Workers  int           `name:"workers"`
	MaxBytes int64         `name:"max_bytes"`
	Rate     float64       `name:"rate"`
	Window   time.Duration `name:"window"`
	Level    logrus.Level  `name:"level"`
	Ignored  string        `name:"-"`
}

func TestReadArguments(t *testing.T) {
	a := assert.New(t)

	var c testConfig
	a.NoError(Read("test", []string{"-name", "x", "-enabled", "-workers=3", "-max_bytes", "1024", "-rate", "1.5", "-window", "10s", "-level", "warning"}, nil, &c))

	a.Equal(testConfig{Name: "x", Enabled: true, Workers: 3, MaxBytes: 1024, Rate: 1.5, Window: 10 * time.Second, Level: logrus.WarnLevel}, c)
}

func TestReadEnvironment(t *testing.T) {
	a := assert.New(t)

	c := testConfig{Name: "default", Level: logrus.InfoLevel}
	a.NoError(Read("test", nil, []string{"NAME=from-env", "ENABLED=true", "WORKERS=7", "WINDOW=1m", "RATE=0.25", "LEVEL=debug", "UNRELATED=1"}, &c))

	a.Equal("from-env", c.Name)
	a.True(c.Enabled)
	a.Equal(7, c.Workers)
	a.Equal(time.Minute, c.Window)
	a.Equal(0.25, c.Rate)
	a.Equal(logrus.DebugLevel, c.Level)
}

func TestReadEnvironmentInvalid(t *testing.T) {
	a := assert.New(t)

	var c testConfig
	a.Error(Read("test", nil, []string{"WORKERS=lots"}, &c))
}

func TestReadFile(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
	}{
		{"config.yaml", "name: from-file\nworkers: 4\n"},
		{"config.toml", "name = \"from-file\"\nworkers = 4\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			p := filepath.Join(t.TempDir(), tc.name)
			a.NoError(os.WriteFile(p, []byte(tc.content), 0644))

			var c testConfig
			a.NoError(Read("test", []string{"-config", p}, []string{"WORKERS=9"}, &c))

			a.Equal("from-file", c.Name)
			a.Equal(9, c.Workers)
		})
	}
}

func TestReadRejectsNonPointer(t *testing.T) {
	a := assert.New(t)

	a.Error(Read("test", nil, nil, testConfig{}))
}
