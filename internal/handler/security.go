package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/xenking/streetwear-market/internal/domain/auth"
)

// HeaderAPIKey carries the caller's API key.
const HeaderAPIKey = "api_key"

// Authenticator resolves API keys to identities via HMAC-SHA256 hashes.
type Authenticator struct {
	keys   auth.Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator with the given API key
// repository and HMAC pepper.
func NewAuthenticator(keys auth.Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// Authenticate computes the HMAC of key, looks it up and compares the stored
// hash in constant time.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (auth.Identity, error) {
	if key == "" {
		return auth.Identity{}, auth.ErrUnauthenticated
	}
	hash := auth.HashKey(a.pepper, key)

	info, err := a.keys.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return auth.Identity{}, err
		}
		return auth.Identity{}, errors.Wrap(err, "find api key")
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return auth.Identity{}, auth.ErrUnauthenticated
	}
	return auth.Identity{UserID: info.UserID, Role: info.Role}, nil
}

// requireAuth rejects requests without a valid API key and stores the
// resolved identity in the request context.
func (h *Handler) requireAuth(c *gin.Context) {
	who, err := h.auth.Authenticate(c.Request.Context(), c.GetHeader(HeaderAPIKey))
	if err != nil {
		h.fail(c, err)
		c.Abort()
		return
	}
	c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), who))
	c.Next()
}

// requireRole rejects identities for which allowed reports false.
func requireRole(allowed func(auth.Identity) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allowed(identity(c)) {
			writeError(c, http.StatusForbidden, auth.ErrForbidden.Error())
			c.Abort()
			return
		}
		c.Next()
	}
}

func isAdmin(who auth.Identity) bool { return who.IsAdmin() }

func canSell(who auth.Identity) bool { return who.CanSell() }

// identity returns the caller set by requireAuth.
func identity(c *gin.Context) auth.Identity {
	who, _ := auth.FromContext(c.Request.Context())
	return who
}
