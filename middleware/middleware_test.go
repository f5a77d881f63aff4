package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommatch/identity"
)

func init() {
	gin.SetMode(gin.TestMode)
	SetJWTSecret("test-secret")
}

func protectedRouter() *gin.Engine {
	r := gin.New()
	r.GET("/whoami", JWTAuthMiddleware(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID))
	})
	return r
}

func TestParseToken_DerivesProfileID(t *testing.T) {
	token, err := IssueToken("firebase-uid-42", time.Hour)
	require.NoError(t, err)

	id, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, identity.ProfileID("firebase-uid-42"), id)
}

func TestParseToken_SubjectOnly(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "sub-only",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	id, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, identity.ProfileID("sub-only"), id)
}

func TestParseToken_Rejects(t *testing.T) {
	expired, err := IssueToken("u", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)

	wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u"}).SignedString([]byte("other"))
	require.NoError(t, err)
	_, err = ParseToken(wrongKey)
	assert.Error(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = ParseToken(noSubject)
	assert.ErrorIs(t, err, ErrNoSubject)
}

func TestJWTAuthMiddleware(t *testing.T) {
	r := protectedRouter()
	token, err := IssueToken("alice", time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"bad scheme", "Token " + token, "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
		{"header", "Bearer " + token, "", http.StatusOK},
		{"query", "", token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			url := "/whoami"
			if tc.query != "" {
				url += "?token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, identity.ProfileID("alice"), w.Body.String())
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(clock, 2, time.Minute)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	clock.Advance(time.Minute + time.Second)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiter_ForgetsIdleKeys(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(clock, 2, time.Minute)

	for _, key := range []string{"ip:10.0.0.1", "ip:10.0.0.2", "ip:10.0.0.3"} {
		assert.True(t, rl.Allow(key))
	}
	assert.Len(t, rl.requests, 3)

	clock.Advance(time.Minute + time.Second)
	assert.True(t, rl.Allow("ip:10.0.0.4"))
	assert.Len(t, rl.requests, 1, "keys idle for a whole window are dropped")

	closed := NewRateLimiter(clock, 0, time.Minute)
	assert.False(t, closed.Allow("a"))
	assert.Empty(t, closed.requests)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(clockwork.NewFakeClock(), 1, time.Minute)
	r := gin.New()
	r.GET("/x", RateLimitMiddleware(rl), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
