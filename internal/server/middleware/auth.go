package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// ProfileResolver maps an authenticated wallet to its profile.
type ProfileResolver interface {
	GetProfileByWallet(ctx context.Context, wallet string) (domain.Profile, error)
}

// Claims is the session token body. Wallet is the address the session was
// signed in with.
type Claims struct {
	Wallet string `json:"wallet"`
	jwt.RegisteredClaims
}

type callerKey struct{}

// WithCaller stores the authenticated profile on ctx.
func WithCaller(ctx context.Context, p domain.Profile) context.Context {
	return context.WithValue(ctx, callerKey{}, p)
}

// CallerFrom returns the profile Caller resolved for this request.
func CallerFrom(ctx context.Context) (domain.Profile, bool) {
	p, ok := ctx.Value(callerKey{}).(domain.Profile)
	return p, ok
}

// NormalizeWallet returns the EIP-55 checksummed form of a hex address, or
// false when s is not an address.
func NormalizeWallet(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", false
	}
	return common.HexToAddress(s).Hex(), true
}

// Caller authenticates the bearer session token, resolves the wallet it names
// to a profile, and rejects suspended or deleted profiles.
func Caller(secret []byte, profiles ProfileResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing authentication token")
				return
			}

			var claims Claims
			tok, err := parser.ParseWithClaims(raw, &claims, keyFunc)
			if err != nil || !tok.Valid {
				writeJSONError(w, http.StatusUnauthorized, "invalid authentication token")
				return
			}

			wallet, ok := NormalizeWallet(claims.Wallet)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "invalid wallet claim")
				return
			}

			profile, err := profiles.GetProfileByWallet(r.Context(), wallet)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					writeJSONError(w, http.StatusUnauthorized, "unknown profile")
					return
				}
				logger.ErrorContext(r.Context(), "auth: resolve profile failed",
					slog.String("error", err.Error()),
				)
				writeJSONError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if profile.Suspended || profile.Deleted {
				writeJSONError(w, http.StatusForbidden, "profile suspended")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), profile)))
		})
	}
}

// AdminKey guards arbitration routes with a static key carried in X-API-Key.
// Only the bcrypt hash of the key is configured. An empty hash disables the
// routes entirely.
func AdminKey(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hash == "" {
				writeJSONError(w, http.StatusForbidden, "admin api disabled")
				return
			}
			key := strings.TrimSpace(r.Header.Get("X-API-Key"))
			if key == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing api key")
				return
			}
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken reads "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || subtle.ConstantTimeCompare([]byte(strings.ToLower(scheme)), []byte("bearer")) != 1 {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
