package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/supabase-community/auth-go"
	"go.uber.org/zap"

	"github.com/decorly-io/decorly/internal/config"
	"github.com/decorly-io/decorly/internal/middleware"
	"github.com/decorly-io/decorly/internal/modules/handler"
	"github.com/decorly-io/decorly/internal/modules/serializer"
)

type RouterDeps struct {
	Config            *config.Config
	Log               *zap.Logger
	AuthClient        auth.Client
	GenerationHandler *handler.GenerationHandler
	ProjectHandler    *handler.ProjectHandler
	UserObjectHandler *handler.UserObjectHandler
	CreditHandler     *handler.CreditHandler
	WebhookHandler    *handler.WebhookHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	// Initialize logger for serializer package
	serializer.SetLogger(d.Log)

	r := gin.New()
	r.Use(gin.Recovery())

	if d.Config.Telemetry.Enabled && d.Config.Telemetry.OtlpEndpoint != "" {
		r.Use(middleware.OtelTracing(d.Config.App.Name))
		r.Use(middleware.TraceID())
	}

	r.Use(middleware.ZapLogger(d.Log))

	// health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "ok"}) })

	// billing provider callback, authenticated by signature instead of a token
	r.POST("/webhooks/billing", d.WebhookHandler.HandleBilling)

	v1 := r.Group("/api/v1")
	{
		v1.Use(middleware.UserAuth(d.Config, d.AuthClient))

		designs := v1.Group("/designs")
		{
			designs.POST("", d.GenerationHandler.SubmitDesign)
			designs.GET("", d.ProjectHandler.ListDesigns)
			designs.POST("/generate", d.GenerationHandler.GenerateSync)
			designs.GET("/:design_id", d.ProjectHandler.GetDesign)
		}

		objects := v1.Group("/objects")
		{
			objects.POST("", d.UserObjectHandler.UploadObject)
			objects.GET("", d.UserObjectHandler.ListObjects)
			objects.POST("/describe", d.UserObjectHandler.DescribeImage)
			objects.GET("/:object_id", d.UserObjectHandler.GetObject)
			objects.DELETE("/:object_id", d.UserObjectHandler.DeleteObject)
		}

		v1.GET("/credits", d.CreditHandler.GetBalance)
	}

	internal := r.Group("/internal/v1")
	{
		internal.Use(middleware.ServiceAuth(d.Config))

		internal.GET("/designs", d.ProjectHandler.ListAllDesigns)
		internal.POST("/designs/:design_id/run", d.GenerationHandler.RunDesign)
	}

	return r
}
