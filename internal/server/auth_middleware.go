package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuth checks a shared secret passed either as "Authorization: Bearer"
// or as the token query parameter. An empty secret disables the check.
type TokenAuth struct {
	Secret string
}

func (a TokenAuth) Authorize(r *http.Request) error {
	if a.Secret == "" {
		return nil
	}
	token := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.Secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
