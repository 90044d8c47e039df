// Package webhooksig verifies the HMAC signatures the transcoding provider puts
// on its webhook deliveries.
package webhooksig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultTolerance = 5 * time.Minute

var (
	ErrMalformedHeader     = fmt.Errorf("malformed signature header")
	ErrTimestampOutOfRange = fmt.Errorf("signature timestamp outside tolerance")
	ErrNoMatch             = fmt.Errorf("no signature matched")
)

func checkTimestamp(ts int64, now time.Time, tolerance time.Duration) error {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	d := now.Sub(time.Unix(ts, 0))
	if d < 0 {
		d = -d
	}

	if d > tolerance {
		return fmt.Errorf("%w: %s", ErrTimestampOutOfRange, d)
	}

	return nil
}

func mac(key []byte, parts ...[]byte) []byte {
	h := hmac.New(sha256.New, key)
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// transcoder: "t=<unix>,v1=<hex>[,v1=<hex>...]" over "<t>.<body>"

func SignTranscoder(body []byte, secret string, at time.Time) string {
	t := strconv.FormatInt(at.Unix(), 10)
	return "t=" + t + ",v1=" + hex.EncodeToString(mac([]byte(secret), []byte(t), []byte("."), body))
}

func VerifyTranscoder(body []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	var t string
	var sigs [][]byte

	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return fmt.Errorf("webhooksig.VerifyTranscoder: %w: %q", ErrMalformedHeader, part)
		}

		switch k {
		case "t":
			t = v
		case "v1":
			b, err := hex.DecodeString(v)
			if err != nil {
				return fmt.Errorf("webhooksig.VerifyTranscoder: %w: %v", ErrMalformedHeader, err)
			}
			sigs = append(sigs, b)
		}
	}

	if t == "" || len(sigs) == 0 {
		return fmt.Errorf("webhooksig.VerifyTranscoder: %w: need t and v1", ErrMalformedHeader)
	}

	ts, err := strconv.ParseInt(t, 10, 64)
	if err != nil {
		return fmt.Errorf("webhooksig.VerifyTranscoder: %w: %v", ErrMalformedHeader, err)
	}

	if err := checkTimestamp(ts, now, tolerance); err != nil {
		return fmt.Errorf("webhooksig.VerifyTranscoder: %w", err)
	}

	expected := mac([]byte(secret), []byte(t), []byte("."), body)
	for _, sig := range sigs {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}

	return fmt.Errorf("webhooksig.VerifyTranscoder: %w", ErrNoMatch)
}
