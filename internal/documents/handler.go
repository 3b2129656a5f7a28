package documents

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"legal-analyzer/internal/shared/server/respond"
	"legal-analyzer/internal/shared/util"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		respond.Error(c, http.StatusBadRequest, "invalid_id", "document id is malformed", nil)
		return
	}
	c.Set("documentId", id)

	doc, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "document_not_found", "document not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal", "failed to fetch document", nil)
		}
		return
	}

	respond.OK(c, doc)
}

func (h *Handler) list(c *gin.Context) {
	docs, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "failed to list documents", nil)
		return
	}
	respond.OK(c, docs)
}
