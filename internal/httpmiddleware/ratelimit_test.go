package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

func loginRouter(l *TokenBucket) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", l.Middleware(ByIPAndUsername), func(c *gin.Context) {
		var body struct {
			Username string `json:"username"`
		}
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": body.Username})
	})
	return r
}

func postLogin(r http.Handler, username string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"`+username+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginLimitIsPerUsername(t *testing.T) {
	l := NewTokenBucket(2, 2)
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	r := loginRouter(l)

	assert.Equal(t, http.StatusOK, postLogin(r, "principal").Code)
	w := postLogin(r, "Principal")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Principal")
	assert.Equal(t, http.StatusTooManyRequests, postLogin(r, "principal").Code)
	assert.Equal(t, http.StatusOK, postLogin(r, "mdas").Code)

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, postLogin(r, "principal").Code)
}
