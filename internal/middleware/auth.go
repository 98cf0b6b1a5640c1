package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/supabase-community/auth-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/decorly-io/decorly/internal/config"
	"github.com/decorly-io/decorly/internal/modules/serializer"
	"github.com/decorly-io/decorly/internal/pkg/utils/secrets"
	"github.com/decorly-io/decorly/internal/pkg/utils/tokens"
)

const userIDKey = "user_id"

// UserAuth returns a middleware that authenticates requests with a Supabase
// user JWT. The verified user id lands in the gin context and on the current
// span for telemetry filtering.
func UserAuth(cfg *config.Config, authClient auth.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		_, authSpan := otel.Tracer("middleware").Start(ctx, "user_auth",
			trace.WithAttributes(attribute.String("middleware", "user_auth")))

		raw := bearerToken(c)
		if raw == "" {
			authSpan.SetAttributes(attribute.Bool("authenticated", false))
			authSpan.End()
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
			return
		}

		user, err := authClient.WithToken(raw).GetUser()
		if err != nil || user == nil {
			authSpan.SetAttributes(attribute.Bool("authenticated", false))
			authSpan.End()
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
			return
		}

		rootSpan := trace.SpanFromContext(c.Request.Context())
		if rootSpan.SpanContext().IsValid() {
			rootSpan.SetAttributes(attribute.String("user_id", user.ID.String()))
		}

		authSpan.SetAttributes(
			attribute.String("user_id", user.ID.String()),
			attribute.Bool("authenticated", true),
		)
		authSpan.End()

		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

// ServiceAuth returns a middleware for the internal worker surface. It
// accepts the single static service token, verified against the configured
// argon2id hash.
func ServiceAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		_, authSpan := otel.Tracer("middleware").Start(ctx, "service_auth",
			trace.WithAttributes(attribute.String("middleware", "service_auth")))

		raw := bearerToken(c)
		secret, ok := tokens.ParseToken(raw, cfg.Root.ServiceTokenPrefix)
		if !ok {
			authSpan.SetAttributes(attribute.Bool("authenticated", false))
			authSpan.End()
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
			return
		}

		if cfg.Root.EnableArgon2Verification {
			pass, err := secrets.VerifySecret(secret, cfg.Root.SecretPepper, cfg.Root.ServiceKeyPHC)
			if err != nil || !pass {
				authSpan.SetAttributes(attribute.Bool("authenticated", false))
				authSpan.End()
				c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
				return
			}
		}

		authSpan.SetAttributes(attribute.Bool("authenticated", true))
		authSpan.End()
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// CurrentUserID returns the authenticated user id set by UserAuth.
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
