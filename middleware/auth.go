package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nijaru/yt-transcripts/errors"
	"github.com/nijaru/yt-transcripts/models"
	"github.com/nijaru/yt-transcripts/repository"
)

const sessionCookie = "session_token"

// Claims are the session token claims issued by the identity provider.
// Subject carries the user id.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type AuthConfig struct {
	Secret []byte
	Issuer string
}

// Auth verifies the HS256 session token from the Authorization header or
// the session cookie and puts the caller on the context. The first request
// of a new identity creates the local user row.
func Auth(cfg AuthConfig, users repository.UserRepository) func(http.Handler) http.Handler {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(parserOpts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "Auth"

			tokenString := bearerToken(r)
			if tokenString == "" {
				writeError(w, r, errors.Unauthorized(op, nil, "Authentication required"))
				return
			}

			claims := &Claims{}
			_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
				return cfg.Secret, nil
			})
			if err != nil {
				GetLogger(r.Context()).WithError(err).Warn("Rejected session token")
				writeError(w, r, errors.Unauthorized(op, err, "Invalid token"))
				return
			}
			if claims.Subject == "" || claims.Email == "" {
				writeError(w, r, errors.Unauthorized(op, nil, "Invalid token claims"))
				return
			}

			user, err := syncUser(r.Context(), users, claims)
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// syncUser loads the user named by claims, creating or refreshing the row
// when the identity provider reports new profile data.
func syncUser(ctx context.Context, users repository.UserRepository, claims *Claims) (*models.User, error) {
	const op = "Auth.syncUser"

	user, err := users.FindByID(ctx, claims.Subject)
	switch {
	case err == nil:
		if strings.EqualFold(user.Email, claims.Email) && (claims.Name == "" || user.Name == claims.Name) {
			return user, nil
		}
		user.Email = claims.Email
		if claims.Name != "" {
			user.Name = claims.Name
		}
		user.UpdatedAt = time.Now().UTC()
	case stderrors.Is(err, repository.ErrNotFound):
		now := time.Now().UTC()
		user = &models.User{
			ID:               claims.Subject,
			Email:            claims.Email,
			Name:             claims.Name,
			SubscriptionTier: models.TierFree,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	default:
		return nil, errors.Internal(op, err, "Failed to load user")
	}

	if err := users.Upsert(ctx, user); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.Conflict(op, err, "Email already belongs to another account")
		}
		return nil, errors.Internal(op, err, "Failed to save user")
	}
	return user, nil
}

// GetUser returns the authenticated caller, or nil outside Auth.
func GetUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(UserKey).(*models.User); ok {
		return user
	}
	return nil
}
