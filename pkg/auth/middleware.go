package auth

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/omniroute/swap-middleware/pkg/app/errors"
)

type contextKey struct{}

// Middleware validates the Bearer token on every request and stores the
// resulting credential in the request context. Requests without a token
// pass through unauthenticated; handlers that need a credential fail via
// FromContext.
func Middleware(issuer *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				http.Error(w, "malformed Authorization header", http.StatusUnauthorized)
				return
			}
			cred, err := issuer.Validate(token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCredential(r.Context(), cred)))
		})
	}
}

// WithCredential returns a context carrying the credential.
func WithCredential(ctx context.Context, cred Credential) context.Context {
	return context.WithValue(ctx, contextKey{}, cred)
}

// FromContext extracts the caller's credential. Returns an
// UnauthorizedError when the request carried no valid token.
func FromContext(ctx context.Context) (Credential, error) {
	cred, ok := ctx.Value(contextKey{}).(Credential)
	if !ok {
		return Credential{}, apperrors.UnauthorizedError(nil, "authentication required")
	}
	return cred, nil
}
