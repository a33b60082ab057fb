package middleware

import (
	"net/http"
	"slices"
	"strings"

	"restorant/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ClaimsKey  = "claims"
	UsuarioKey = "usuario"

	RolMesero        = "mesero"
	RolCajero        = "cajero"
	RolAdministrador = "administrador"
)

// JWTClaims are issued by the auth service; this service only validates
// them. Mesas is the waiter's section. Empty means every mesa.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Rol      string   `json:"rol"`
	Mesas    []string `json:"mesas,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth validates the Bearer token on every protected route. Tokens
// without exp are rejected.
func JWTAuth(secret string) gin.HandlerFunc {
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}
	return func(c *gin.Context) {
		tokenStr, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				apierror.WithCode(apierror.CodeNoAutenticado, "Autenticacion requerida"))
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc, jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				apierror.WithCode(apierror.CodeNoAutenticado, "Token invalido o expirado"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(UsuarioKey, claims.Username)
		c.Next()
	}
}

// RequireRole rejects requests whose JWT role is not in the allowed list.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || !slices.Contains(roles, claims.Rol) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				apierror.WithCode(apierror.CodeSinPermiso, "Permisos insuficientes"))
			return
		}
		c.Next()
	}
}

// RequireMesaAsignada keeps a waiter inside their section on :mesa routes.
func RequireMesaAsignada() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusForbidden,
				apierror.WithCode(apierror.CodeSinPermiso, "Permisos insuficientes"))
			return
		}
		if len(claims.Mesas) > 0 && !slices.Contains(claims.Mesas, c.Param("mesa")) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				apierror.WithCode(apierror.CodeSinPermiso, "Mesa fuera de la sección asignada"))
			return
		}
		c.Next()
	}
}

// GetClaims returns the typed claims, or nil outside JWTAuth.
func GetClaims(c *gin.Context) *JWTClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*JWTClaims)
	return claims
}
