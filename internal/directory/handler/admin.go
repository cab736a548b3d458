package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"gatehouse/internal/identity"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
)

// CredentialVerifier authenticates a bearer credential.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, credential string) (*identity.Identity, error)
}

// AdminAuthorizer decides whether an authenticated caller is an admin.
type AdminAuthorizer interface {
	IsAdmin(ctx context.Context, ident *identity.Identity) (bool, error)
}

// AdminOnly guards the admin surface. The caller presents a bearer
// credential from the identity provider; the role check consults both the
// provider metadata and the broker profile.
func AdminOnly(verifier CredentialVerifier, authz AdminAuthorizer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			credential := bearerToken(r)
			if credential == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin credential required"))
				return
			}

			ident, err := verifier.VerifyCredential(ctx, credential)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid admin credential"))
				return
			}

			ok, err := authz.IsAdmin(ctx, ident)
			if err != nil {
				logger.ErrorContext(ctx, "admin check failed", "error", err, "user_id", ident.ID)
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "admin check failed"))
				return
			}
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin privileges required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
