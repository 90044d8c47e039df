package webhooksig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestVerifyTranscoder(t *testing.T) {
	body := []byte(`{"type":"video.asset.ready"}`)
	good := SignTranscoder(body, "secret", now)

	for _, tc := range []struct {
		name   string
		body   []byte
		header string
		secret string
		now    time.Time
		err    error
	}{
		{"Valid", body, good, "secret", now, nil},
		{"ValidWithinTolerance", body, good, "secret", now.Add(4 * time.Minute), nil},
		{"ExtraSignature", body, good + ",v1=00ff", "secret", now, nil},
		{"WrongSecret", body, good, "other", now, ErrNoMatch},
		{"TamperedBody", []byte(`{"type":"video.asset.errored"}`), good, "secret", now, ErrNoMatch},
		{"Expired", body, good, "secret", now.Add(6 * time.Minute), ErrTimestampOutOfRange},
		{"NoTimestamp", body, "v1=00ff", "secret", now, ErrMalformedHeader},
		{"NotHex", body, "t=1,v1=zz", "secret", now, ErrMalformedHeader},
		{"Garbage", body, "garbage", "secret", now, ErrMalformedHeader},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			err := VerifyTranscoder(tc.body, tc.header, tc.secret, tc.now, 0)
			if tc.err == nil {
				a.NoError(err)
			} else {
				a.ErrorIs(err, tc.err)
			}
		})
	}
}
