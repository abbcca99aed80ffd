package handler

import (
	"net/http"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
	"github.com/Mussapinga011/PartQuip-sub000/internal/remote"
	"github.com/Mussapinga011/PartQuip-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

// CollectionsHandler serves /v1/collections, the endpoint set the shop
// clients' sync engine talks to.
type CollectionsHandler struct {
	svc service.CollectionService
	now func() time.Time
}

func NewCollectionsHandler(svc service.CollectionService) *CollectionsHandler {
	return &CollectionsHandler{svc: svc, now: time.Now}
}

// List handles GET /v1/collections/:collection[?since=RFC3339].
func (h *CollectionsHandler) List(c *gin.Context) {
	since, ok := parseSince(c)
	if !ok {
		return
	}
	serverTime := h.now().UTC()
	recs, err := h.svc.List(c.Request.Context(), c.Param("collection"), since)
	if err != nil {
		respondError(c, err)
		return
	}
	if recs == nil {
		recs = []model.Record{}
	}
	c.JSON(http.StatusOK, remote.CollectionResponse{
		Collection: c.Param("collection"),
		Records:    recs,
		ServerTime: serverTime,
	})
}

// Insert handles POST /v1/collections/:collection. An existing id is a 409.
func (h *CollectionsHandler) Insert(c *gin.Context) {
	raw, ok := readBody(c)
	if !ok {
		return
	}
	out, err := h.svc.Insert(c.Request.Context(), c.Param("collection"), raw)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, remote.WriteResponse{Applied: true, Record: &out})
}

// Upsert handles PUT /v1/collections/:collection/:id.
func (h *CollectionsHandler) Upsert(c *gin.Context) {
	raw, ok := readBody(c)
	if !ok {
		return
	}
	out, applied, err := h.svc.Upsert(c.Request.Context(), c.Param("collection"), c.Param("id"), raw)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.WriteResponse{Applied: applied, Record: &out})
}

// Update handles PATCH /v1/collections/:collection/:id. A missing id is a 404.
func (h *CollectionsHandler) Update(c *gin.Context) {
	raw, ok := readBody(c)
	if !ok {
		return
	}
	out, applied, err := h.svc.Update(c.Request.Context(), c.Param("collection"), c.Param("id"), raw)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.WriteResponse{Applied: applied, Record: &out})
}

// Delete handles DELETE /v1/collections/:collection/:id. Deleting a missing
// id succeeds with applied=false.
func (h *CollectionsHandler) Delete(c *gin.Context) {
	deleted, err := h.svc.Delete(c.Request.Context(), c.Param("collection"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.WriteResponse{Applied: deleted})
}
