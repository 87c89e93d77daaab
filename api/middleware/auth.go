package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/coursemarket-backend/api/responses"
	pkgAuth "github.com/angelmondragon/coursemarket-backend/pkg/auth"
	"github.com/angelmondragon/coursemarket-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// wallet and role it was issued for.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="coursemarket"`)
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, tokenFailure(err)))
				return
			}

			ctx := WithRole(WithWallet(r.Context(), claims.Wallet), claims.Role)
			if logg != nil {
				ctx = logg.WithActorRole(logg.WithWallet(ctx, claims.Wallet.Hex()), string(claims.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts "Bearer <token>" with any casing of the scheme.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func tokenFailure(err error) string {
	if errors.Is(err, pkgAuth.ErrTokenExpired) {
		return "token expired"
	}
	return "invalid token"
}
