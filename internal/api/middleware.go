package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mkravets/team-pulse/internal/auth"
	"github.com/mkravets/team-pulse/internal/model"
	"github.com/mkravets/team-pulse/internal/service"
	"github.com/mkravets/team-pulse/pkg/logger"
)

const currentUserKey = "current_user"

func ZapLoggerMiddleware(l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)

			reqLogger := l.With(
				zap.String("request_id", requestID),
			)

			ctx := logger.WithLogger(req.Context(), reqLogger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			latency := time.Since(start)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.Int("status", res.Status),
				zap.Duration("latency", latency),
				zap.Int64("bytes_in", req.ContentLength),
				zap.Int64("bytes_out", res.Size),
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
				reqLogger.Error("request failed", fields...)
			} else {
				reqLogger.Info("request completed", fields...)
			}

			return err
		}
	}
}

// AuthMiddleware verifies the bearer token and resolves the local user,
// creating it lazily on first sight. The resolved user is attached to the
// echo context; handlers pass its id into services explicitly.
func AuthMiddleware(verifier auth.Verifier, users *service.UserService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := logger.FromContext(c.Request().Context())

			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return unauthorized(c, "missing bearer token")
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				l.Warn("token verification failed", zap.Error(err))
				return unauthorized(c, "invalid or expired token")
			}

			user, serr := users.ResolveIdentity(c.Request().Context(), identity)
			if serr != nil {
				l.Error("failed to resolve identity", zap.Any("error", serr))
				return unauthorized(c, "failed to resolve identity")
			}

			c.Set(currentUserKey, user)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// CurrentUser returns the authenticated local user attached by AuthMiddleware.
func CurrentUser(c echo.Context) *model.User {
	if u, ok := c.Get(currentUserKey).(*model.User); ok {
		return u
	}
	return nil
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, struct {
		Error *service.Error `json:"error"`
	}{Error: service.NewError(service.ErrorCodeUnauthorized, message)})
}
