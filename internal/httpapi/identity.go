package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nikolayk812/restaurant-checkout/internal/auth"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"go.uber.org/zap"
)

const sessionKey = "session"

// identity resolves who is checking out. A bearer token must be valid; without one
// the request runs as a guest, under the X-Guest-Session id or a fresh one.
func identity(verifier SessionVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok, err := verifier.SessionFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			logger.Info("bearer token rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if !ok {
			guestID := strings.TrimSpace(c.GetHeader(GuestSessionHeader))
			if !auth.ValidGuestSessionID(guestID) {
				guestID = auth.NewGuestSessionID()
			}
			session = domain.Session{GuestSessionID: guestID}
			c.Header(GuestSessionHeader, guestID)
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) domain.Session {
	v, _ := c.Get(sessionKey)
	session, _ := v.(domain.Session)
	return session
}
