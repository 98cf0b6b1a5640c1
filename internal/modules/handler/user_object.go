package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/decorly-io/decorly/internal/middleware"
	"github.com/decorly-io/decorly/internal/modules/serializer"
	"github.com/decorly-io/decorly/internal/modules/service"
)

const maxObjectUploadBytes = 20 << 20

type UserObjectHandler struct {
	svc service.UserObjectService
}

func NewUserObjectHandler(s service.UserObjectService) *UserObjectHandler {
	return &UserObjectHandler{svc: s}
}

// UploadObject godoc
//
//	@Summary		Upload a reusable object asset
//	@Description	Stores the image, builds a thumbnail and attaches a model-generated one-line description.
//	@Tags			object
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file			formData	file	true	"Image file"
//	@Param			display_name	formData	string	true	"Display name shown in the library"
//	@Param			category		formData	string	false	"Category, default other"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.UserObject}
//	@Failure		400	{object}	serializer.Response
//	@Router			/objects [post]
func (h *UserObjectHandler) UploadObject(c *gin.Context) {
	ownerID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("missing file", err))
		return
	}
	if fileHeader.Size > maxObjectUploadBytes {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("file too large", nil))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("cannot read file", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxObjectUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("cannot read file", err))
		return
	}

	obj, err := h.svc.Upload(c.Request.Context(), service.UploadObjectInput{
		OwnerID:     ownerID,
		DisplayName: c.PostForm("display_name"),
		Category:    c.PostForm("category"),
		Data:        data,
		MIME:        fileHeader.Header.Get("Content-Type"),
	})
	if err != nil {
		resp := serializer.SvcErr(err)
		c.JSON(resp.Code, resp)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: obj})
}

// ListObjects godoc
//
//	@Summary		List the caller's object library
//	@Tags			object
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.UserObject}
//	@Router			/objects [get]
func (h *UserObjectHandler) ListObjects(c *gin.Context) {
	ownerID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	objs, err := h.svc.List(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: objs})
}

// GetObject godoc
//
//	@Summary		Get one object from the library
//	@Tags			object
//	@Produce		json
//	@Param			object_id	path	string	true	"Object ID"	format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.UserObject}
//	@Failure		404	{object}	serializer.Response
//	@Router			/objects/{object_id} [get]
func (h *UserObjectHandler) GetObject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("object_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid object_id", err))
		return
	}

	ownerID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	obj, err := h.svc.Get(c.Request.Context(), ownerID, id)
	if err != nil {
		resp := serializer.SvcErr(err)
		c.JSON(resp.Code, resp)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: obj})
}

// DeleteObject godoc
//
//	@Summary		Delete an object from the library
//	@Description	Projects that referenced the object keep their reference; later runs simply skip it.
//	@Tags			object
//	@Produce		json
//	@Param			object_id	path	string	true	"Object ID"	format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/objects/{object_id} [delete]
func (h *UserObjectHandler) DeleteObject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("object_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid object_id", err))
		return
	}

	ownerID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	if err := h.svc.Delete(c.Request.Context(), ownerID, id); err != nil {
		resp := serializer.SvcErr(err)
		c.JSON(resp.Code, resp)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Msg: "deleted"})
}

type DescribeImageReq struct {
	ImageURL string `json:"image_url" binding:"required" example:"https://cdn.example.com/objects/chair.jpg"`
}

type DescribeImageResp struct {
	Description string `json:"description"`
}

// DescribeImage godoc
//
//	@Summary		Describe a remote image
//	@Description	Returns a one-line model description without persisting anything.
//	@Tags			object
//	@Accept			json
//	@Produce		json
//	@Param			body	body	DescribeImageReq	true	"Image URL"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=DescribeImageResp}
//	@Failure		400	{object}	serializer.Response
//	@Router			/objects/describe [post]
func (h *UserObjectHandler) DescribeImage(c *gin.Context) {
	req := DescribeImageReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	ownerID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	desc, err := h.svc.Describe(c.Request.Context(), ownerID, req.ImageURL)
	if err != nil {
		resp := serializer.SvcErr(err)
		c.JSON(resp.Code, resp)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: DescribeImageResp{Description: desc}})
}
