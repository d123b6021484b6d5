package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"vehicle-inspection-backend/internal/apperr"
	"vehicle-inspection-backend/internal/files"
	"vehicle-inspection-backend/internal/inspection"
	"vehicle-inspection-backend/internal/ledger"
	"vehicle-inspection-backend/internal/mw"
	"vehicle-inspection-backend/internal/query"
)

// uploadField is the multipart field carrying attachments.
const uploadField = "files"

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc   *inspection.Service
	files files.Store
	log   logrus.FieldLogger
}

// NewHandler creates a new API handler.
func NewHandler(svc *inspection.Service, fs files.Store, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, files: fs, log: log.WithField("component", "api")}
}

func (h *Handler) filter(c *gin.Context) (query.Filter, bool) {
	var p query.Params
	if err := c.ShouldBindQuery(&p); err != nil {
		h.fail(c, apperr.Validation("", "%v", err))
		return query.Filter{}, false
	}
	f, err := query.FromParams(p, h.svc.FilterOptions())
	if err != nil {
		h.fail(c, err)
		return query.Filter{}, false
	}
	return f, true
}

func recordID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id", "invalid record id %q", c.Param("id"))
	}
	return id, nil
}

func identity(c *gin.Context) inspection.Identity {
	user, role := mw.Caller(c)
	return inspection.Identity{User: user, Role: role}
}

// uploads collects the multipart files of the request. A request without a
// multipart body has no uploads.
func uploads(c *gin.Context) ([]ledger.Upload, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Validation(uploadField, "%v", err)
	}

	var out []ledger.Upload
	for _, fh := range form.File[uploadField] {
		out = append(out, ledger.Upload{
			Name: fh.Filename,
			Size: fh.Size,
			Open: openHeader(fh),
		})
	}
	return out, nil
}

func openHeader(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) { return fh.Open() }
}

// fail maps an error to its HTTP status and writes the JSON error body.
func (h *Handler) fail(c *gin.Context, err error) {
	var (
		verr *apperr.ValidationError
		nerr *apperr.NotFoundError
		ferr *apperr.ForbiddenError
	)
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.As(err, &nerr):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": nerr.Error()})
	case errors.As(err, &ferr):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": ferr.Error()})
	default:
		h.log.WithError(err).WithField("request_id", mw.GetRequestID(c)).Error("Request failed")
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// respondRecord writes a record, or a 207 with the refused uploads when the
// write only partly succeeded.
func (h *Handler) respondRecord(c *gin.Context, status int, view inspection.RecordView, err error) {
	if err == nil {
		c.JSON(status, view)
		return
	}
	if partial, ok := apperr.AsPartial(err); ok {
		c.JSON(http.StatusMultiStatus, gin.H{"record": view, "rejected": partial.Rejected})
		return
	}
	h.fail(c, err)
}
