// Package auth guards the admin surface with a single bearer token.
// The configured value is a bcrypt hash; the plaintext token only
// exists in the operator's hands.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrUnauthorized = errors.New("unauthorized")

type TokenVerifier struct {
	tokenHash string
}

// NewTokenVerifier takes the bcrypt hash of the admin token. An empty
// hash disables the admin surface entirely.
func NewTokenVerifier(tokenHash string) *TokenVerifier {
	return &TokenVerifier{tokenHash: tokenHash}
}

func (v *TokenVerifier) Enabled() bool {
	return v.tokenHash != ""
}

func (v *TokenVerifier) Verify(token string) error {
	if v.tokenHash == "" || token == "" {
		return ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(v.tokenHash), []byte(token)); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// HashToken generates the bcrypt hash to put in configuration.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Middleware rejects requests without a valid bearer token. A disabled
// verifier rejects everything; the admin surface never fails open.
func (v *TokenVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || v.Verify(token) != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
