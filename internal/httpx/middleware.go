package httpx

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MikeMC777/ecom-saas/internal/auth"
	"github.com/MikeMC777/ecom-saas/internal/tenant"
)

const (
	keyStore   = "store"
	keySession = "session"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("rid", rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		rid, _ := c.Get("rid")
		log.Printf("[http] rid=%v host=%s %s %s status=%d dur=%s",
			rid, c.Request.Host, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// StoreResolver is satisfied by *tenant.Resolver.
type StoreResolver interface {
	Resolve(ctx context.Context, host string) (*tenant.Store, error)
}

// Tenant resolves the store from the Host header and aborts with 404 when none matches.
func Tenant(r StoreResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := r.Resolve(c.Request.Context(), c.Request.Host)
		if err != nil {
			Error(c, err)
			c.Abort()
			return
		}
		c.Set(keyStore, st)
		c.Next()
	}
}

// Store returns the store set by Tenant.
func Store(c *gin.Context) *tenant.Store {
	v, ok := c.Get(keyStore)
	if !ok {
		return nil
	}
	st, _ := v.(*tenant.Store)
	return st
}

// TokenParser is satisfied by *auth.Tokens.
type TokenParser interface {
	Parse(raw string) (auth.Session, error)
}

// Authenticate reads a bearer token or the "token" cookie. Requests without a
// valid token continue anonymously; use RequireAuth to reject them.
func Authenticate(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c.GetHeader("Authorization"))
		if raw == "" {
			raw, _ = c.Cookie("token")
		}
		if raw != "" {
			if s, err := p.Parse(raw); err == nil {
				c.Set(keySession, s)
				c.Request = c.Request.WithContext(auth.WithSession(c.Request.Context(), s))
			}
		}
		c.Next()
	}
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := Session(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// RequireOwner lets through only the owner of the resolved store.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := Session(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		st := Store(c)
		if st == nil || st.Platform || st.OwnerID != s.UserID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "store owner only"})
			return
		}
		c.Next()
	}
}

// Session returns the authenticated caller, if any.
func Session(c *gin.Context) (auth.Session, bool) {
	v, ok := c.Get(keySession)
	if !ok {
		return auth.Session{}, false
	}
	s, ok := v.(auth.Session)
	return s, ok && s.UserID != ""
}

func bearer(h string) string {
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
