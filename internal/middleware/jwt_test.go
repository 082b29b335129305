package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvaldes/gradgala/internal/utils"
)

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	require.NoError(t, handler(c))
	return rec, c
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	tok, err := utils.NewAccessToken("secret", 7, "GRADUATE", 15)
	require.NoError(t, err)

	rec, c := runMiddleware(t, JWTAuth("secret"), "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(7), c.Get("user_id"))
	assert.Equal(t, "GRADUATE", c.Get("role"))
}

func TestJWTAuthRejectsMissingAndBadTokens(t *testing.T) {
	rec, _ := runMiddleware(t, JWTAuth("secret"), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = runMiddleware(t, JWTAuth("secret"), "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := utils.NewAccessToken("other-secret", 7, "GRADUATE", 15)
	require.NoError(t, err)
	rec, _ = runMiddleware(t, JWTAuth("secret"), "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsExpiredToken(t *testing.T) {
	tok, err := utils.NewAccessToken("secret", 7, "GRADUATE", -1)
	require.NoError(t, err)

	rec, _ := runMiddleware(t, JWTAuth("secret"), "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalJWTAuthPassesAnonymous(t *testing.T) {
	rec, c := runMiddleware(t, OptionalJWTAuth("secret"), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, c.Get("user_id"))
}

func TestOptionalJWTAuthAttachesIdentity(t *testing.T) {
	tok, err := utils.NewAccessToken("secret", 7, "GRADUATE", 15)
	require.NoError(t, err)

	rec, c := runMiddleware(t, OptionalJWTAuth("secret"), "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(7), c.Get("user_id"))
}

func TestOptionalJWTAuthIgnoresInvalidToken(t *testing.T) {
	rec, c := runMiddleware(t, OptionalJWTAuth("secret"), "Bearer garbage")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, c.Get("user_id"))
}

func TestRequireRole(t *testing.T) {
	e := echo.New()

	run := func(role interface{}) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if role != nil {
			c.Set("role", role)
		}
		handler := RequireRole("ADMIN")(func(c echo.Context) error {
			return c.String(http.StatusOK, "ok")
		})
		require.NoError(t, handler(c))
		return rec
	}

	assert.Equal(t, http.StatusOK, run("ADMIN").Code)
	assert.Equal(t, http.StatusForbidden, run("GRADUATE").Code)
	assert.Equal(t, http.StatusForbidden, run(nil).Code)
}
