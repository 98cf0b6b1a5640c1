package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/decorly-io/decorly/internal/middleware"
	"github.com/decorly-io/decorly/internal/modules/serializer"
	"github.com/decorly-io/decorly/internal/modules/service"
)

type ProjectHandler struct {
	svc service.ProjectService
}

func NewProjectHandler(s service.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: s}
}

type ListDesignsReq struct {
	Page     int `form:"page,default=1" json:"page" binding:"min=1" example:"1"`
	PageSize int `form:"page_size,default=20" json:"page_size" binding:"min=1,max=100" example:"20"`
}

// ListDesigns godoc
//
//	@Summary		List the caller's design projects
//	@Description	Returns the owner's projects newest first with offset pagination.
//	@Tags			design
//	@Produce		json
//	@Param			page		query	integer	false	"Page number, default 1"
//	@Param			page_size	query	integer	false	"Page size, default 20. Max 100."
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.ListProjectsOutput}
//	@Router			/designs [get]
func (h *ProjectHandler) ListDesigns(c *gin.Context) {
	req := ListDesignsReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	ownerID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	out, err := h.svc.ListByOwner(c.Request.Context(), service.ListProjectsInput{
		OwnerID:  ownerID,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// GetDesign godoc
//
//	@Summary		Get one design project
//	@Description	Returns the caller's project, including the terminal result or failure detail.
//	@Tags			design
//	@Produce		json
//	@Param			design_id	path	string	true	"Project ID"	format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Project}
//	@Failure		404	{object}	serializer.Response
//	@Router			/designs/{design_id} [get]
func (h *ProjectHandler) GetDesign(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("design_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid design_id", err))
		return
	}

	ownerID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	p, err := h.svc.Get(c.Request.Context(), ownerID, projectID)
	if err != nil {
		resp := serializer.SvcErr(err)
		c.JSON(resp.Code, resp)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: p})
}

// ListAllDesigns godoc
//
//	@Summary		List projects across all owners
//	@Description	Internal surface for dashboards and reconciliation tooling.
//	@Tags			internal
//	@Produce		json
//	@Param			page		query	integer	false	"Page number, default 1"
//	@Param			page_size	query	integer	false	"Page size, default 20. Max 100."
//	@Security		ServiceToken
//	@Success		200	{object}	serializer.Response{data=service.ListProjectsOutput}
//	@Router			/internal/v1/designs [get]
func (h *ProjectHandler) ListAllDesigns(c *gin.Context) {
	req := ListDesignsReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	out, err := h.svc.ListAll(c.Request.Context(), service.ListProjectsInput{
		OwnerID:  uuid.Nil,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: out})
}
