package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"vehicle-inspection-backend/internal/apperr"
	"vehicle-inspection-backend/internal/ledger"
	"vehicle-inspection-backend/internal/report"
)

// restoreField is the multipart field carrying a database snapshot.
const restoreField = "dbfile"

// Export handles GET /api/export/:format. The export file is removed once it
// has been sent.
func (h *Handler) Export(c *gin.Context) {
	format, err := report.ParseFormat(c.Param("format"))
	if err != nil {
		h.fail(c, err)
		return
	}
	f, ok := h.filter(c)
	if !ok {
		return
	}

	res, err := h.svc.Export(c.Request.Context(), format, f, identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer func() {
		if err := os.Remove(res.Path); err != nil {
			h.log.WithError(err).WithField("file", res.Path).Warn("Failed to remove served export")
		}
	}()

	c.Header("Content-Type", format.ContentType())
	c.FileAttachment(res.Path, "records"+format.Extension())
}

// Backup handles GET /api/admin/backup.
func (h *Handler) Backup(c *gin.Context) {
	path, err := h.svc.Backup(c.Request.Context(), identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// Restore handles POST /api/admin/restore.
func (h *Handler) Restore(c *gin.Context) {
	fh, err := c.FormFile(restoreField)
	if err != nil {
		h.fail(c, apperr.Validation(restoreField, "%v", err))
		return
	}
	kept, err := h.svc.Restore(c.Request.Context(), identity(c), ledger.Upload{Name: fh.Filename, Size: fh.Size, Open: openHeader(fh)})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": fh.Filename, "previous": filepath.Base(kept)})
}
