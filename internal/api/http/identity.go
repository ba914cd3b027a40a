package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/radieske/matka-settlement/internal/api/dto"
	"github.com/radieske/matka-settlement/internal/authz"
)

// Headers preenchidos pelo gateway de autenticação, confiáveis aqui.
const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

type principalKey struct{}

func principalFrom(ctx context.Context) (authz.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(authz.Principal)
	return p, ok
}

func (s *Server) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		role, err := authz.ParseRole(r.Header.Get(HeaderRole))
		if id == "" || err != nil {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "missing or invalid identity"})
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, authz.Principal{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) require(c authz.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFrom(r.Context())
			if !ok || !s.authz.Can(p, c) {
				writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "forbidden: " + string(c)})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
