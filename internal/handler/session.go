package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashmitsharp/tradebook/internal/cache"
	"github.com/ashmitsharp/tradebook/internal/models"
)

// Sessions binds browser cookies to in-memory sessions.
type Sessions struct {
	store      *cache.Store
	cookieName string
	ttl        time.Duration
}

func NewSessions(store *cache.Store, cookieName string, ttl time.Duration) *Sessions {
	return &Sessions{
		store:      store,
		cookieName: cookieName,
		ttl:        ttl,
	}
}

// Lookup returns the caller's session, or nil if there is none.
func (s *Sessions) Lookup(c *gin.Context) *cache.Session {
	id, err := c.Cookie(s.cookieName)
	if err != nil {
		return nil
	}
	sess, ok := s.store.Get(id)
	if !ok {
		return nil
	}
	return sess
}

// Ensure returns the caller's session, creating one and setting the cookie
// when needed.
func (s *Sessions) Ensure(c *gin.Context) (*cache.Session, error) {
	if sess := s.Lookup(c); sess != nil {
		return sess, nil
	}
	sess, err := s.store.Create()
	if err != nil {
		return nil, err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookieName, sess.ID, int(s.ttl.Seconds()), "/", "", false, true)
	return sess, nil
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Error:     code,
		Message:   message,
		Code:      status,
		Timestamp: time.Now().Unix(),
	})
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}
