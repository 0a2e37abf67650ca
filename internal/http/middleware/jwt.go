package middleware

import (
	"net/http"
	"strings"

	"colorsnap/internal/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const addressKey = "address"

// JWT requires a session token, from the Authorization header or, for
// websocket upgrades, the token query parameter.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		addr, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(addressKey, addr)
		c.Next()
	}
}

// Address returns the address set by JWT
func Address(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(addressKey)
	if !ok {
		return common.Address{}, false
	}
	addr, ok := v.(common.Address)
	return addr, ok
}
