package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"vehicle-inspection-backend/internal/apperr"
	"vehicle-inspection-backend/internal/files"
	"vehicle-inspection-backend/internal/inspection"
)

// ListRecords handles GET /api/records.
func (h *Handler) ListRecords(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	res, err := h.svc.ListRecords(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetRecord handles GET /api/records/:id.
func (h *Handler) GetRecord(c *gin.Context) {
	id, err := recordID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	view, err := h.svc.GetRecord(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CreateRecord handles POST /api/records.
func (h *Handler) CreateRecord(c *gin.Context) {
	var in inspection.RecordInput
	if err := c.ShouldBind(&in); err != nil {
		h.fail(c, apperr.Validation("", "%v", err))
		return
	}
	ups, err := uploads(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	view, err := h.svc.CreateRecord(c.Request.Context(), identity(c), in, ups)
	h.respondRecord(c, http.StatusCreated, view, err)
}

// UpdateRecord handles PUT /api/records/:id.
func (h *Handler) UpdateRecord(c *gin.Context) {
	id, err := recordID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var in inspection.RecordInput
	if err := c.ShouldBind(&in); err != nil {
		h.fail(c, apperr.Validation("", "%v", err))
		return
	}
	ups, err := uploads(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	view, err := h.svc.UpdateRecord(c.Request.Context(), id, in, ups)
	h.respondRecord(c, http.StatusOK, view, err)
}

// DeleteRecord handles DELETE /api/records/:id.
func (h *Handler) DeleteRecord(c *gin.Context) {
	id, err := recordID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.DeleteRecord(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddAttachments handles POST /api/records/:id/attachments.
func (h *Handler) AddAttachments(c *gin.Context) {
	id, err := recordID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	ups, err := uploads(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(ups) == 0 {
		h.fail(c, apperr.Validation(uploadField, "no files uploaded"))
		return
	}

	view, err := h.svc.AddAttachments(c.Request.Context(), id, ups)
	h.respondRecord(c, http.StatusOK, view, err)
}

// RemoveAttachment handles DELETE /api/records/:id/attachments/:name.
func (h *Handler) RemoveAttachment(c *gin.Context) {
	id, err := recordID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	view, err := h.svc.RemoveAttachment(c.Request.Context(), id, c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ServeUpload handles GET /api/uploads/:name.
func (h *Handler) ServeUpload(c *gin.Context) {
	name := c.Param("name")
	f, err := h.files.Open(name)
	switch {
	case errors.Is(err, files.ErrInvalidName):
		h.fail(c, apperr.Validation("name", "invalid file name"))
		return
	case errors.Is(err, os.ErrNotExist):
		h.fail(c, apperr.NotFound("file", name))
		return
	case err != nil:
		h.fail(c, apperr.Storage("open attachment", err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.fail(c, apperr.Storage("stat attachment", err))
		return
	}
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
}
