package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/decorly-io/decorly/internal/middleware"
	"github.com/decorly-io/decorly/internal/modules/serializer"
	"github.com/decorly-io/decorly/internal/modules/service"
)

type CreditHandler struct {
	svc service.CreditService
}

func NewCreditHandler(s service.CreditService) *CreditHandler {
	return &CreditHandler{svc: s}
}

type CreditBalanceResp struct {
	Balance        int `json:"balance"`
	GenerationCost int `json:"generation_cost"`
}

// GetBalance godoc
//
//	@Summary		Get the caller's credit balance
//	@Description	First call for a new user applies the signup grant.
//	@Tags			credit
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=CreditBalanceResp}
//	@Router			/credits [get]
func (h *CreditHandler) GetBalance(c *gin.Context) {
	ownerID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	balance, err := h.svc.Balance(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: CreditBalanceResp{
		Balance:        balance,
		GenerationCost: h.svc.Cost(),
	}})
}
