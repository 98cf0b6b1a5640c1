package handler

import (
	"crypto/hmac"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/decorly-io/decorly/internal/config"
	"github.com/decorly-io/decorly/internal/modules/serializer"
	"github.com/decorly-io/decorly/internal/modules/service"
	"github.com/decorly-io/decorly/internal/pkg/utils/tokens"
)

const maxWebhookBodyBytes = 1 << 20

type WebhookHandler struct {
	credits service.CreditService
	cfg     *config.Config
	log     *zap.Logger
}

func NewWebhookHandler(credits service.CreditService, cfg *config.Config, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{credits: credits, cfg: cfg, log: log}
}

type BillingEvent struct {
	Type    string    `json:"type"`
	UserID  uuid.UUID `json:"user_id"`
	Credits int       `json:"credits"`
}

// HandleBilling godoc
//
//	@Summary		Receive a billing provider event
//	@Description	Verifies the HMAC-SHA256 signature over the raw body and credits the purchased amount.
//	@Tags			webhook
//	@Accept			json
//	@Produce		json
//	@Param			X-Webhook-Signature	header	string			true	"Hex HMAC-SHA256 of the body, keyed with the shared webhook secret"
//	@Param			body				body	BillingEvent	true	"Billing event"
//	@Success		200	{object}	serializer.Response
//	@Failure		401	{object}	serializer.Response
//	@Router			/webhooks/billing [post]
func (h *WebhookHandler) HandleBilling(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("cannot read body", err))
		return
	}

	sig := c.GetHeader("X-Webhook-Signature")
	want := tokens.HMAC256Hex(h.cfg.Root.WebhookSecret, string(body))
	if sig == "" || !hmac.Equal([]byte(sig), []byte(want)) {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr("invalid signature"))
		return
	}

	var ev BillingEvent
	if err := sonic.Unmarshal(body, &ev); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid payload", err))
		return
	}

	switch ev.Type {
	case "credits.purchased":
		if ev.UserID == uuid.Nil || ev.Credits <= 0 {
			c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid event fields", nil))
			return
		}
		if err := h.credits.Grant(c.Request.Context(), ev.UserID, ev.Credits); err != nil {
			c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
			return
		}
		h.log.Info("billing credits granted",
			zap.String("user_id", ev.UserID.String()),
			zap.Int("credits", ev.Credits))
	default:
		// Unknown event types are acknowledged so the provider stops retrying.
		h.log.Info("ignoring billing event", zap.String("type", ev.Type))
	}

	c.JSON(http.StatusOK, serializer.Response{Msg: "ok"})
}
