package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rentwise/rentwise/internal/config"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/types"
)

// Claims are the verified identity fields of a bearer token
type Claims struct {
	UserID string         `json:"user_id"`
	Role   types.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// AuthenticateMiddleware verifies the HS256 bearer token and puts the caller's
// user ID and role on the request context.
func AuthenticateMiddleware(cfg *config.Configuration, logger *logger.Logger) gin.HandlerFunc {
	secret := []byte(cfg.Auth.Secret)

	return func(c *gin.Context) {
		authHeader := c.GetHeader(types.HeaderAuthorization)
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if authHeader == "" || !ok || tokenString == "" {
			c.Error(ierr.NewError("missing bearer token").
				WithHint("Unauthorized").
				Mark(ierr.ErrUnauthorized))
			c.Abort()
			return
		}

		claims := &Claims{}
		_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ierr.NewErrorf("unexpected signing method %v", token.Header["alg"]).
					Mark(ierr.ErrUnauthorized)
			}
			return secret, nil
		})
		if err != nil {
			logger.Debugw("failed to validate token", "error", err)
			c.Error(ierr.WithError(err).
				WithHint("Invalid token").
				Mark(ierr.ErrUnauthorized))
			c.Abort()
			return
		}

		if claims.UserID == "" || claims.Role.Validate() != nil {
			c.Error(ierr.NewError("token is missing identity claims").
				WithHint("Invalid token claims").
				Mark(ierr.ErrUnauthorized))
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		ctx = types.SetUserID(ctx, claims.UserID)
		ctx = types.SetUserRole(ctx, claims.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed
func RequireRole(roles ...types.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := types.GetUserRole(c.Request.Context())
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.Error(ierr.NewErrorf("role %s is not allowed", role).
			WithHint("You are not allowed to perform this action").
			Mark(ierr.ErrPermissionDenied))
		c.Abort()
	}
}
