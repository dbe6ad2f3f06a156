package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiter_PerDesk(t *testing.T) {
	r := gin.New()
	r.POST("/desks/:id/code", RateLimiter(rate.Every(time.Hour), 2, ClientDeskKey, zerolog.Nop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func(desk string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/desks/"+desk+"/code", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("a"))
	assert.Equal(t, http.StatusOK, do("a"))
	assert.Equal(t, http.StatusTooManyRequests, do("a"))
	assert.Equal(t, http.StatusOK, do("b"), "another desk has its own bucket")
}

func TestKeyedRateLimiter_ReusesLimiter(t *testing.T) {
	l := NewKeyedRateLimiter(rate.Limit(1), 1, time.Minute)
	assert.Same(t, l.GetLimiter("k"), l.GetLimiter("k"))
	assert.NotSame(t, l.GetLimiter("k"), l.GetLimiter("other"))
}

func TestCache(t *testing.T) {
	calls := 0
	r := gin.New()
	r.GET("/instances", Cache(cache.New(time.Minute, time.Minute), time.Minute), func(c *gin.Context) {
		calls++
		if c.Query("date") == "bad" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad date"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"date": c.Query("date"), "calls": calls})
	})

	get := func(target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		return w
	}

	first := get("/instances?date=2026-03-14&x=1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := get("/instances?x=1&date=2026-03-14")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	get("/instances?date=bad")
	get("/instances?date=bad")
	assert.Equal(t, 3, calls, "errors are not cached")
}
