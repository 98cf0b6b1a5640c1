package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/decorly-io/decorly/internal/middleware"
	"github.com/decorly-io/decorly/internal/modules/model"
	"github.com/decorly-io/decorly/internal/modules/serializer"
	"github.com/decorly-io/decorly/internal/modules/service"
)

type GenerationHandler struct {
	svc service.GenerationService
}

func NewGenerationHandler(s service.GenerationService) *GenerationHandler {
	return &GenerationHandler{svc: s}
}

type SubmitDesignReq struct {
	InputImageRef string             `json:"input_image_ref" binding:"required" example:"https://cdn.example.com/rooms/living.jpg"`
	Params        model.DesignParams `json:"params" binding:"required"`
	ObjectIDs     []uuid.UUID        `json:"object_ids"`
}

// SubmitDesign godoc
//
//	@Summary		Submit a design generation job
//	@Description	Debits credits, creates a pending project and schedules the generation. Poll the project until it reaches completed or failed.
//	@Tags			design
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header	string			false	"Client token deduplicating retries of the same submission"
//	@Param			body			body	SubmitDesignReq	true	"Design request"
//	@Security		BearerAuth
//	@Success		202	{object}	serializer.Response{data=model.Project}
//	@Failure		400	{object}	serializer.Response
//	@Failure		402	{object}	serializer.Response
//	@Failure		409	{object}	serializer.Response
//	@Router			/designs [post]
func (h *GenerationHandler) SubmitDesign(c *gin.Context) {
	req := SubmitDesignReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	ownerID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	p, err := h.svc.Submit(c.Request.Context(), service.SubmitInput{
		OwnerID:        ownerID,
		InputImageRef:  req.InputImageRef,
		Params:         req.Params,
		ObjectIDs:      req.ObjectIDs,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		resp := serializer.SvcErr(err)
		c.JSON(resp.Code, resp)
		return
	}

	c.JSON(http.StatusAccepted, serializer.Response{Code: http.StatusAccepted, Data: p, Msg: "accepted"})
}

type GenerateSyncReq struct {
	Prompt          string             `json:"prompt" binding:"required"`
	MainImageURL    string             `json:"main_image_url" binding:"required"`
	ObjectImageURLs []string           `json:"object_image_urls"`
	Params          model.DesignParams `json:"params"`
}

// GenerateSync godoc
//
//	@Summary		Generate a design synchronously
//	@Description	Runs the whole pipeline within the request and returns the generated image inline as a data URL.
//	@Tags			design
//	@Accept			json
//	@Produce		json
//	@Param			body	body	GenerateSyncReq	true	"Generation request"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.SyncOutput}
//	@Failure		400	{object}	serializer.Response
//	@Failure		402	{object}	serializer.Response
//	@Failure		503	{object}	serializer.Response
//	@Router			/designs/generate [post]
func (h *GenerationHandler) GenerateSync(c *gin.Context) {
	req := GenerateSyncReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	ownerID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	out, err := h.svc.GenerateSync(c.Request.Context(), service.SyncInput{
		OwnerID:         ownerID,
		Prompt:          req.Prompt,
		MainImageURL:    req.MainImageURL,
		ObjectImageURLs: req.ObjectImageURLs,
		Params:          req.Params,
	})
	if err != nil {
		resp := serializer.SvcErr(err)
		c.JSON(resp.Code, resp)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// RunDesign godoc
//
//	@Summary		Execute a scheduled generation run
//	@Description	Internal worker surface. Loads the pending project, runs the generation and transitions it to a terminal state. Idempotent for terminal projects.
//	@Tags			internal
//	@Produce		json
//	@Param			design_id	path	string	true	"Project ID"	format(uuid)
//	@Security		ServiceToken
//	@Success		200	{object}	serializer.Response{data=model.Project}
//	@Failure		404	{object}	serializer.Response
//	@Router			/internal/v1/designs/{design_id}/run [post]
func (h *GenerationHandler) RunDesign(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("design_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid design_id", err))
		return
	}

	p, err := h.svc.Run(c.Request.Context(), projectID)
	if err != nil {
		// The project row is still the useful payload: a failed run responds
		// with the terminal project, not only the error.
		resp := serializer.SvcErr(err)
		resp.Data = p
		c.JSON(resp.Code, resp)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: p})
}
