package ctxauth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/negroni/v2"

	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/dbtest"
)

func TestSubject(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	v := ctxauth.NewVerifier("secret", "issuer")

	good, err := v.Sign("user_1", now, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	otherSecret, _ := ctxauth.NewVerifier("other", "issuer").Sign("user_1", now, time.Hour)
	otherIssuer, _ := ctxauth.NewVerifier("secret", "elsewhere").Sign("user_1", now, time.Hour)

	for _, tc := range []struct {
		name  string
		token string
		at    time.Time
		ok    bool
	}{
		{"Valid", good, now.Add(time.Minute), true},
		{"Expired", good, now.Add(2 * time.Hour), false},
		{"WrongSecret", otherSecret, now, false},
		{"WrongIssuer", otherIssuer, now, false},
		{"Garbage", "not.a.token", now, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			subject, err := v.Subject(tc.token, tc.at)
			if tc.ok {
				a.NoError(err)
				a.Equal("user_1", subject)
			} else {
				a.ErrorIs(err, ctxauth.ErrInvalidToken)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	ctx, _ := dbtest.Context(t)
	ctx = ctxclock.WithClock(ctx, ctxclock.NewStaticClock(dbtest.Start))

	alice := dbtest.CreateUser(t, ctx, "alice")

	v := ctxauth.NewVerifier("secret", "")

	aliceToken, _ := v.Sign(alice.ExternalID, dbtest.Start, time.Hour)
	strangerToken, _ := v.Sign("ext_nobody", dbtest.Start, time.Hour)

	n := negroni.New()
	n.UseFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(ctx))
	})
	n.UseFunc(ctxauth.Register(v))
	n.UseHandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if u := ctxauth.GetUser(r.Context()); u != nil {
			rw.Write([]byte(u.Name))
			return
		}

		_, err := ctxauth.RequireUser(r.Context())
		rw.Write([]byte("anonymous " + err.Error()))
	})

	for _, tc := range []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"NoHeader", "", http.StatusOK, "anonymous UNAUTHORIZED: sign in required"},
		{"Alice", "Bearer " + aliceToken, http.StatusOK, "alice"},
		{"UnknownSubject", "Bearer " + strangerToken, http.StatusOK, "anonymous UNAUTHORIZED: sign in required"},
		{"BadToken", "Bearer nope", http.StatusUnauthorized, ""},
		{"OtherScheme", "Basic abc", http.StatusOK, "anonymous UNAUTHORIZED: sign in required"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("authorization", tc.header)
			}

			rw := httptest.NewRecorder()
			n.ServeHTTP(rw, req)

			a.Equal(tc.status, rw.Code)
			if tc.body != "" {
				a.Equal(tc.body, rw.Body.String())
			}
		})
	}
}
