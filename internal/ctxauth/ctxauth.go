package ctxauth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
	"fknsrs.biz/p/vidshare/internal/httputil"
	"fknsrs.biz/p/vidshare/models"
)

// context registration

var userKey int

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, &userKey, u)
}

// GetUser returns the signed-in user, or nil for anonymous requests.
func GetUser(ctx context.Context) *models.User {
	if v := ctx.Value(&userKey); v != nil {
		return v.(*models.User)
	}

	return nil
}

// RequireUser is GetUser for operations that need a signed-in user.
func RequireUser(ctx context.Context) (*models.User, error) {
	if u := GetUser(ctx); u != nil {
		return u, nil
	}

	return nil, apierror.New(apierror.Unauthorized, "sign in required")
}

// UserID is the signed-in user's id, or zero.
func UserID(ctx context.Context) int {
	if u := GetUser(ctx); u != nil {
		return u.ID
	}

	return 0
}

// tokens

var (
	ErrInvalidToken = fmt.Errorf("ctxauth: invalid token")
)

type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Sign issues an HS256 token for subject. Used by tests and local tooling;
// production tokens come from the identity provider.
func (v *Verifier) Sign(subject string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("ctxauth.Verifier.Sign: %w", err)
	}

	return s, nil
}

// Subject verifies token and returns the identity provider's user id.
func (v *Verifier) Subject(token string, now time.Time) (string, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}

	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, options...); err != nil {
		return "", fmt.Errorf("ctxauth.Verifier.Subject: %w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("ctxauth.Verifier.Subject: %w: missing subject", ErrInvalidToken)
	}

	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("authorization")
	if h == "" {
		return "", false
	}

	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	return strings.TrimSpace(token), true
}

// FindUserByExternalID loads the local user row for an identity provider id.
func FindUserByExternalID(ctx context.Context, db sorm.Querier, externalID string) (*models.User, error) {
	var user models.User
	if err := sorm.FindFirstWhere(ctx, db, &user, "where external_id = ?", externalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("ctxauth.FindUserByExternalID: %w", err)
	}

	return &user, nil
}

// middleware

// Register resolves a bearer token to a local user. Requests without a token
// continue anonymously; a bad token is rejected with UNAUTHORIZED.
func Register(v *Verifier) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		token, ok := bearerToken(r)
		if !ok {
			next(rw, r)
			return
		}

		ctx := r.Context()

		subject, err := v.Subject(token, ctxclock.NowOrReal(ctx))
		if err != nil {
			httputil.Error(rw, r, apierror.Wrap(apierror.Unauthorized, err, "invalid token"))
			return
		}

		user, err := FindUserByExternalID(ctx, ctxdb.GetDB(ctx), subject)
		if err != nil {
			httputil.Error(rw, r, err)
			return
		}

		if user == nil {
			ctxlogger.GetLogger(ctx).WithField("auth.subject", subject).Debug("no local user for token subject")
			next(rw, r)
			return
		}

		ctx, _ = ctxlogger.WithFields(ctx, logrus.Fields{"auth.user_id": user.ID})

		next(rw, r.WithContext(WithUser(ctx, user)))
	}
}
