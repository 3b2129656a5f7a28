package intake

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"legal-analyzer/internal/shared/metrics"
	"legal-analyzer/internal/shared/server/middleware"
	"legal-analyzer/internal/shared/server/respond"
	"legal-analyzer/internal/shared/util"
)

const (
	uploadField = "document"
	// multipartSlack leaves room for boundaries and part headers around the file.
	multipartSlack = 1 << 20
)

// Handler exposes the intake pipeline over HTTP.
type Handler struct {
	Pipeline *Pipeline
	// Guard runs before the upload and analyze routes, e.g. rate limiting.
	Guard []gin.HandlerFunc
}

// NewHandler constructs a Handler.
func NewHandler(p *Pipeline, guard ...gin.HandlerFunc) *Handler {
	return &Handler{Pipeline: p, Guard: guard}
}

// RegisterRoutes attaches intake routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/upload", h.chain(h.upload)...)
	rg.POST("/documents/:id/analyze", h.chain(h.reanalyze)...)
}

func (h *Handler) chain(final gin.HandlerFunc) []gin.HandlerFunc {
	handlers := make([]gin.HandlerFunc, 0, len(h.Guard)+1)
	handlers = append(handlers, h.Guard...)
	return append(handlers, final)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Pipeline.maxFileBytes()+multipartSlack)

	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		metrics.IncUpload(metrics.OutcomeRejected)
		c.Set("intakeStage", string(StageReceived))
		if isBodyTooLarge(err) {
			respond.Error(c, http.StatusBadRequest, CodeFileTooLarge, "File exceeds the 10MB limit", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, CodeNoFileProvided, "No file uploaded", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		metrics.IncUpload(metrics.OutcomeInternalError)
		respond.Error(c, http.StatusInternalServerError, CodeInternal, "unable to read upload", nil)
		return
	}
	defer file.Close()

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	out, err := h.Pipeline.Process(ctx, Upload{
		FileName:     fileHeader.Filename,
		MediaType:    fileHeader.Header.Get("Content-Type"),
		DeclaredSize: fileHeader.Size,
		Body:         file,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Set("documentId", out.Document.ID)
	c.Set("analysisId", out.Analysis.ID)
	respond.OK(c, out)
}

func (h *Handler) reanalyze(c *gin.Context) {
	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		respond.Error(c, http.StatusBadRequest, "invalid_id", "document id is malformed", nil)
		return
	}
	c.Set("documentId", id)

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	out, err := h.Pipeline.Reanalyze(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Set("analysisId", out.Analysis.ID)
	respond.OK(c, out)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var ie *Error
	if !errors.As(err, &ie) {
		respond.Error(c, http.StatusInternalServerError, CodeInternal, "Internal server error", nil)
		return
	}
	c.Set("intakeStage", string(ie.Stage))
	if ie.DocumentID != "" {
		c.Set("documentId", ie.DocumentID)
	}
	respond.Error(c, ie.Status, ie.Code, ie.Message(), nil)
}

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}
