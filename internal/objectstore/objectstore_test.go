package objectstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKey(t *testing.T) {
	a := assert.New(t)

	k1 := NewKey("thumbnails/12")
	k2 := NewKey("thumbnails/12")

	a.True(strings.HasPrefix(k1, "thumbnails/12/"))
	a.Len(strings.TrimPrefix(k1, "thumbnails/12/"), 36)
	a.NotEqual(k1, k2)
}

func TestMinioURL(t *testing.T) {
	for _, tc := range []struct {
		name      string
		publicURL string
		secure    bool
		key       string
		out       string
	}{
		{"Derived", "", false, "banners/a", "http://localhost:9000/media/banners/a"},
		{"DerivedSecure", "", true, "banners/a", "https://localhost:9000/media/banners/a"},
		{"Public", "https://cdn.example.com/", false, "banners/a", "https://cdn.example.com/banners/a"},
		{"Escaped", "https://cdn.example.com", false, "banners/a b", "https://cdn.example.com/banners/a%20b"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			m, err := NewMinio("localhost:9000", "key", "secret", "media", tc.publicURL, tc.secure)
			if a.NoError(err) {
				a.Equal(tc.out, m.URL(tc.key))
			}
		})
	}
}
