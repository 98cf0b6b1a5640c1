package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/decorly-io/decorly/internal/telemetry"
)

// OtelTracing instruments API requests with OpenTelemetry spans.
func OtelTracing(serviceName string) gin.HandlerFunc {
	return telemetry.GinMiddleware(serviceName)
}

// TraceID mirrors the active trace id into the X-Trace-Id response header.
func TraceID() gin.HandlerFunc {
	return telemetry.TraceIDMiddleware()
}

// ZapLogger logs one structured line per request.
func ZapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			log.Error("request", fields...)
		case c.Writer.Status() >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
