package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/jwtauth"
)

// Token scopes
const (
	ScopeRead   = "read"
	ScopeManage = "manage"
)

// AllSpaces in the spaces claim grants access to every space.
const AllSpaces = "*"

// NewAuth returns an HS256 signer and verifier for secret.
func NewAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// NewToken issues a token for subject that reaches spaces with the given
// scopes. A zero ttl issues a token without expiry.
func NewToken(auth *jwtauth.JWTAuth, subject string, spaces []string, scopes []string, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{
		"sub":    subject,
		"spaces": spaces,
		"scope":  strings.Join(scopes, " "),
		"iat":    time.Now().Unix(),
	}
	if ttl > 0 {
		claims["exp"] = jwtauth.ExpireIn(ttl)
	}
	_, token, err := auth.Encode(claims)
	return token, err
}

// authenticate rejects requests without a valid bearer token.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			message := "missing bearer token"
			if err != nil {
				message = err.Error()
			}
			writeErrorResponse(w, r, http.StatusUnauthorized, ErrorUnauthorized, message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorize checks the token reaches the space in the URL and carries the
// scope the method needs.
func (h *Handler) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, _ := jwtauth.FromContext(r.Context())

		space := urlParam(r, "space")
		spaces := claimList(claims["spaces"])
		if !contains(spaces, space) && !contains(spaces, AllSpaces) {
			writeErrorResponse(w, r, http.StatusForbidden, ErrorAccessDenied, "token does not grant access to space "+space)
			return
		}

		scopes := claimList(claims["scope"])
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			if !contains(scopes, ScopeRead) && !contains(scopes, ScopeManage) {
				writeErrorResponse(w, r, http.StatusForbidden, ErrorAccessDenied, "token lacks the read scope")
				return
			}
		default:
			if !contains(scopes, ScopeManage) {
				writeErrorResponse(w, r, http.StatusForbidden, ErrorAccessDenied, "token lacks the manage scope")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// claimList accepts a space separated string or a list.
func claimList(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return strings.Fields(t)
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
