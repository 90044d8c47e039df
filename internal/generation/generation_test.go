package generation

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Jeffail/gabs/v2"
	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		status int
		body   string
		out    string
		err    error
	}{
		{"OK", http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"  Baking Sourdough At Home \n"}}]}`, "Baking Sourdough At Home", nil},
		{"Empty", http.StatusOK, `{"choices":[{"message":{"content":"   "}}]}`, "", ErrEmptyResult},
		{"NoChoices", http.StatusOK, `{"choices":[]}`, "", ErrEmptyResult},
		{"Upstream", http.StatusInternalServerError, `{"error":"down"}`, "", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			var got *gabs.Container

			s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				a.Equal("/v1/chat/completions", r.URL.Path)
				a.Equal("Bearer key", r.Header.Get("authorization"))

				d, _ := io.ReadAll(r.Body)
				got, _ = gabs.ParseJSON(d)

				rw.WriteHeader(tc.status)
				io.WriteString(rw, tc.body)
			}))
			defer s.Close()

			out, err := New(s.URL+"/v1/", "key", "model-1", 0).Generate(context.Background(), TitlePrompt, "transcript text")

			switch {
			case tc.status != http.StatusOK:
				a.Error(err)
			case tc.err != nil:
				a.ErrorIs(err, tc.err)
			default:
				a.NoError(err)
				a.Equal(tc.out, out)
			}

			if a.NotNil(got) {
				a.Equal("model-1", got.Path("model").Data())
				a.Equal("system", got.Path("messages.0.role").Data())
				a.Equal(TitlePrompt, got.Path("messages.0.content").Data())
				a.Equal("transcript text", got.Path("messages.1.content").Data())
			}
		})
	}
}

func TestGenerateCancelledWhileWaiting(t *testing.T) {
	a := assert.New(t)

	c := New("http://127.0.0.1:0", "key", "model", 1)
	c.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Generate(ctx, TitlePrompt, "x")
	a.Error(err)
}
