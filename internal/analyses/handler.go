package analyses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"legal-analyzer/internal/documents"
	"legal-analyzer/internal/shared/server/respond"
	"legal-analyzer/internal/shared/util"
)

// Handler exposes stored analyses over HTTP.
type Handler struct {
	Svc     *Service
	DocRepo documents.Repo
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, docRepo documents.Repo) *Handler {
	return &Handler{Svc: svc, DocRepo: docRepo}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/:id/analysis", h.getForDocument)
}

func (h *Handler) getForDocument(c *gin.Context) {
	documentID, ok := util.ParseID(c.Param("id"))
	if !ok {
		respond.Error(c, http.StatusBadRequest, "invalid_id", "document id is malformed", nil)
		return
	}
	c.Set("documentId", documentID)
	ctx := c.Request.Context()

	if _, err := h.DocRepo.GetByID(ctx, documentID); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "document_not_found", "document not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal", "failed to fetch analysis", nil)
		return
	}

	analysis, err := h.Svc.ForDocument(ctx, documentID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "analysis_not_found", "analysis not found for document", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal", "failed to fetch analysis", nil)
		}
		return
	}

	c.Set("analysisId", analysis.ID)
	respond.OK(c, analysis)
}
