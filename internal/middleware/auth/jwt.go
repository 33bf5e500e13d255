package auth

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Operator is the caller of the internal webhook API
type Operator struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
}

const operatorContextKey = "operator"

// DefaultRoles may call the internal API when JWTConfig.Roles is empty
var DefaultRoles = []string{"service_role", "admin"}

// JWTConfig holds the configuration for JWT middleware
type JWTConfig struct {
	Secret string
	Logger *zap.Logger
	Roles  []string
}

// JWTMiddleware validates HS256 bearer tokens and requires an operator role
func JWTMiddleware(config JWTConfig) echo.MiddlewareFunc {
	roles := config.Roles
	if len(roles) == 0 {
		roles = DefaultRoles
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			// Extract token from Authorization header
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				config.Logger.Warn("Missing authorization header",
					zap.String("path", path),
					zap.String("method", c.Request().Method))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Authorization header required",
					"code":  "MISSING_AUTH_HEADER",
				})
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				config.Logger.Warn("Invalid authorization header format",
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid authorization header format. Expected: Bearer <token>",
					"code":  "INVALID_AUTH_FORMAT",
				})
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(config.Secret), nil
			})
			if err != nil || !token.Valid {
				config.Logger.Warn("JWT validation failed",
					zap.Error(err),
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid or expired token",
					"code":  "INVALID_TOKEN",
				})
			}

			role, _ := claims["role"].(string)
			subject, _ := claims.GetSubject()
			if !slices.Contains(roles, role) {
				config.Logger.Warn("Operator role required",
					zap.String("subject", subject),
					zap.String("role", role),
					zap.String("path", path))
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": "Insufficient role",
					"code":  "FORBIDDEN",
				})
			}

			c.Set(operatorContextKey, &Operator{Subject: subject, Role: role})
			return next(c)
		}
	}
}

// GetOperator returns the caller authenticated by JWTMiddleware
func GetOperator(c echo.Context) (*Operator, error) {
	op, ok := c.Get(operatorContextKey).(*Operator)
	if !ok || op == nil {
		return nil, fmt.Errorf("no authenticated operator found in context")
	}
	return op, nil
}
