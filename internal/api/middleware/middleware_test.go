package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-watchdog/internal/metrics"
	"github.com/platformbuilds/mirador-watchdog/pkg/logger"
)

const testSecret = "0123456789abcdef"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "analyst-1",
		"iss": "watchdog",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func TestExtractToken_Sources(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	c.Request = httptest.NewRequest(http.MethodGet, "/x?token=qt", http.NoBody)
	assert.Empty(t, extractToken(c), "query token must be rejected")

	c.Request = httptest.NewRequest(http.MethodGet, "/x", http.NoBody)
	c.Request.Header.Set("X-Session-Token", "xs")
	assert.Equal(t, "xs", extractToken(c))

	c.Request = httptest.NewRequest(http.MethodGet, "/x", http.NoBody)
	c.Request.Header.Set("Authorization", "Bearer abcd")
	assert.Equal(t, "abcd", extractToken(c))

	c.Request = httptest.NewRequest(http.MethodGet, "/x", http.NoBody)
	c.Request.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, extractToken(c))
}

func TestValidateJWTToken(t *testing.T) {
	key := []byte(testSecret)

	t.Run("ok", func(t *testing.T) {
		sub, err := validateJWTToken(sign(t, jwt.SigningMethodHS256, key, validClaims()), key, "watchdog")
		require.NoError(t, err)
		assert.Equal(t, "analyst-1", sub)
	})

	t.Run("wrong key", func(t *testing.T) {
		_, err := validateJWTToken(sign(t, jwt.SigningMethodHS256, []byte("another-secret-key"), validClaims()), key, "")
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		claims := validClaims()
		claims["exp"] = time.Now().Add(-time.Minute).Unix()
		_, err := validateJWTToken(sign(t, jwt.SigningMethodHS256, key, claims), key, "")
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("no expiry", func(t *testing.T) {
		claims := validClaims()
		delete(claims, "exp")
		_, err := validateJWTToken(sign(t, jwt.SigningMethodHS256, key, claims), key, "")
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := validateJWTToken(sign(t, jwt.SigningMethodHS256, key, validClaims()), key, "someone-else")
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})

	t.Run("missing subject", func(t *testing.T) {
		claims := validClaims()
		delete(claims, "sub")
		_, err := validateJWTToken(sign(t, jwt.SigningMethodHS256, key, claims), key, "")
		assert.ErrorIs(t, err, errMissingSubject)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims())
		_, err := validateJWTToken(token, key, "")
		assert.Error(t, err)
	})
}

func TestJWTAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWTAuth(testSecret, "", logger.Nop()))
	r.GET("/who", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(SubjectKey)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", http.NoBody))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing_token")

	req := httptest.NewRequest(http.MethodGet, "/who", http.NoBody)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_token")

	req = httptest.NewRequest(http.MethodGet, "/who", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "analyst-1", w.Body.String())
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "204")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", http.NoBody))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/43", http.NoBody))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(logger.Nop()))
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", http.NoBody))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
