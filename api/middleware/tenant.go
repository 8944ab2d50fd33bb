package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/customeros/bccstack/api/errors"
	bccstack_errors "github.com/customeros/bccstack/errors"
)

// TenantClaims is what the dashboard signs for the status endpoint.
type TenantClaims struct {
	jwt.RegisteredClaims
	OrgID string `json:"org_id"`
}

// TenantAuthMiddleware resolves the caller's tenant from an HS256 bearer token.
func TenantAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, err := tenantFromAuthorization(c.GetHeader("Authorization"), []byte(secret))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    apierrors.CodeUnauthorized,
				"message": err.Error(),
			})
			return
		}

		c.Set("TenantId", tenant)
		c.Next()
	}
}

func tenantFromAuthorization(header string, secret []byte) (string, error) {
	tokenString, found := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	if !found || strings.TrimSpace(tokenString) == "" {
		return "", bccstack_errors.ErrMissingAuthToken
	}
	if len(secret) == 0 {
		return "", bccstack_errors.ErrInvalidAuthToken
	}

	claims := &TenantClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", bccstack_errors.ErrInvalidAuthToken
	}
	if claims.OrgID == "" {
		return "", bccstack_errors.ErrTenantNotSet
	}
	return claims.OrgID, nil
}
