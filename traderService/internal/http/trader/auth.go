package trader

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/nastyazhadan/perp-trader/shared/config"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
)

const tokenIssuer = "perp-trader"

type authenticator struct {
	secret   []byte
	username string
	password string
	ttl      time.Duration
	now      func() time.Time
}

func newAuthenticator(cfg config.AuthConfig) *authenticator {
	return &authenticator{
		secret:   []byte(cfg.JWTSecret),
		username: cfg.AdminUsername,
		password: cfg.AdminPassword,
		ttl:      cfg.TokenTTL,
		now:      time.Now,
	}
}

func (a *authenticator) validCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	return userOK && passwordOK
}

func (a *authenticator) issue(subject string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

func (a *authenticator) verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", err
	}

	return claims.Subject, nil
}

// require rejects requests without a valid bearer token.
func (a *authenticator) require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || raw == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}

		subject, err := a.verify(raw)
		if err != nil {
			zapLogger.Warn(r.Context(), "rejected bearer token", zap.Error(err))
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}

		ctx := zapLogger.ContextWithUserID(r.Context(), subject)
		next(w, r.WithContext(ctx))
	}
}
