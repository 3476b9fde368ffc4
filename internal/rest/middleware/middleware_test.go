package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rentwise/rentwise/internal/config"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/types"
	"github.com/stretchr/testify/suite"
)

type MiddlewareSuite struct {
	suite.Suite
	cfg *config.Configuration
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.cfg = config.GetDefaultConfig()
}

func (s *MiddlewareSuite) engine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware, ErrorHandler(logger.NewNoopLogger(), nil))
	r.GET("/whoami", append(handlers, func(c *gin.Context) {
		ctx := c.Request.Context()
		c.JSON(http.StatusOK, gin.H{
			"user_id": types.GetUserID(ctx),
			"role":    types.GetUserRole(ctx),
		})
	})...)
	return r
}

func (s *MiddlewareSuite) token(secret string, claims Claims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	s.Require().NoError(err)
	return signed
}

func (s *MiddlewareSuite) do(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authorization != "" {
		req.Header.Set(types.HeaderAuthorization, authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func (s *MiddlewareSuite) TestAuthenticate() {
	r := s.engine(AuthenticateMiddleware(s.cfg, logger.NewNoopLogger()))

	valid := s.token(s.cfg.Auth.Secret, Claims{
		UserID: "usr_1",
		Role:   types.UserRoleTenant,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	w := s.do(r, "Bearer "+valid)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"user_id":"usr_1"`)
	s.Contains(w.Body.String(), `"role":"tenant"`)
	s.NotEmpty(w.Header().Get(types.HeaderRequestID))
}

func (s *MiddlewareSuite) TestAuthenticate_Rejects() {
	r := s.engine(AuthenticateMiddleware(s.cfg, logger.NewNoopLogger()))

	expired := s.token(s.cfg.Auth.Secret, Claims{
		UserID: "usr_1",
		Role:   types.UserRoleTenant,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	wrongSecret := s.token("other-secret", Claims{UserID: "usr_1", Role: types.UserRoleTenant})
	noRole := s.token(s.cfg.Auth.Secret, Claims{UserID: "usr_1"})

	for name, header := range map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"garbage":      "Bearer not-a-jwt",
		"expired":      "Bearer " + expired,
		"wrong secret": "Bearer " + wrongSecret,
		"no role":      "Bearer " + noRole,
	} {
		s.Run(name, func() {
			w := s.do(r, header)
			s.Equal(http.StatusUnauthorized, w.Code)
			s.Contains(w.Body.String(), ierr.ErrCodeUnauthorized)
		})
	}
}

func (s *MiddlewareSuite) TestRequireRole() {
	r := gin.New()
	r.Use(ErrorHandler(logger.NewNoopLogger(), nil))
	r.GET("/whoami", func(c *gin.Context) {
		c.Request = c.Request.WithContext(types.SetUserRole(c.Request.Context(), types.UserRoleTenant))
	}, RequireRole(types.UserRoleLandlord), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	s.Equal(http.StatusForbidden, s.do(r, "").Code)
}

func (s *MiddlewareSuite) TestRequestIDPropagation() {
	r := s.engine()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(types.HeaderRequestID, "req_given")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	s.Equal("req_given", w.Header().Get(types.HeaderRequestID))
}

func (s *MiddlewareSuite) TestSyncRateLimit() {
	s.cfg.RateLimit.SyncPerMinute = 1
	s.cfg.RateLimit.SyncBurst = 2
	r := s.engine(SyncRateLimitMiddleware(s.cfg))

	s.Equal(http.StatusOK, s.do(r, "").Code)
	s.Equal(http.StatusOK, s.do(r, "").Code)
	s.Equal(http.StatusTooManyRequests, s.do(r, "").Code)
}

func (s *MiddlewareSuite) TestUserLimitersEvictIdleCallers() {
	u := newUserLimiters(50*time.Millisecond, 1)

	for _, key := range []string{"usr_a", "usr_b", "usr_c"} {
		s.True(u.get(key).Allow())
	}
	s.Equal(3, u.cache.ItemCount())
	s.False(u.get("usr_a").Allow())

	time.Sleep(150 * time.Millisecond)
	u.cache.DeleteExpired()
	s.Zero(u.cache.ItemCount())

	// an evicted caller starts with a full bucket
	s.True(u.get("usr_a").Allow())
	s.Equal(1, u.cache.ItemCount())
}

func (s *MiddlewareSuite) TestErrorHandlerHidesInternalDetails() {
	r := gin.New()
	r.Use(ErrorHandler(logger.NewNoopLogger(), nil))
	r.GET("/boom", func(c *gin.Context) {
		c.Error(ierr.NewError("dynamodb: connection reset").
			WithReportableDetails(map[string]any{"table": "payments"}).
			Mark(ierr.ErrDatabase))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	s.Equal(http.StatusInternalServerError, w.Code)
	s.Contains(w.Body.String(), defaultDisplayMessage)
	s.NotContains(w.Body.String(), "dynamodb")
	s.NotContains(w.Body.String(), "payments")
}
