package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"colorsnap/internal/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestJWTSetsAddress(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service.InitJWT("mw-secret")
	addr := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tok, err := service.GenerateJWT(addr, time.Hour)
	require.NoError(t, err)

	var seen common.Address
	r := gin.New()
	r.GET("/me", JWT(), func(c *gin.Context) {
		seen, _ = Address(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, addr, seen)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+tok, nil))
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, http.StatusUnauthorized, get(t, r, "/me"))
	require.Equal(t, http.StatusUnauthorized, get(t, r, "/me?token=bogus"))
}

func TestActionRateLimitNeedsAddress(t *testing.T) {
	r := gin.New()
	r.POST("/act", ActionRateLimit(1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/act", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
