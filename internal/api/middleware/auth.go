package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/gatherings/internal/api/problem"
	"github.com/Togather-Foundation/gatherings/internal/auth"
	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/rs/zerolog"
)

// AccessTokenValidator verifies bearer access tokens.
type AccessTokenValidator interface {
	ValidateAccess(token string) (*auth.Claims, error)
}

// Authenticate resolves the bearer token, if any, into an access.Actor on the
// request context. Requests without an Authorization header continue as
// anonymous; a header carrying a bad token is rejected with 401.
func Authenticate(validator AccessTokenValidator, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, err := auth.TokenFromHeader(header)
			if err != nil {
				writeUnauthorized(w, r, err, env)
				return
			}
			claims, err := validator.ValidateAccess(token)
			if err != nil {
				writeUnauthorized(w, r, err, env)
				return
			}

			actor := access.Actor{UserID: claims.Subject, Username: claims.Username}
			ctx := access.WithActor(r.Context(), actor)
			logger := zerolog.Ctx(ctx).With().Str("user_id", actor.UserID).Logger()
			ctx = logger.WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !access.ActorFrom(r.Context()).Authenticated() {
				writeUnauthorized(w, r, access.ErrUnauthenticated, env)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, err error, env string) {
	detail := "Authentication credentials were not provided."
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrWrongTokenType):
		detail = "Given token not valid for any token type."
	case errors.Is(err, auth.ErrMissingToken):
		detail = "Authorization header must contain two space-delimited values."
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, env, problem.WithDetail(detail))
}
