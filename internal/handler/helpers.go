package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/apierror"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
	"github.com/Mussapinga011/PartQuip-sub000/internal/repository"
	"github.com/Mussapinga011/PartQuip-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 4 << 20

// respondError maps domain and storage errors to status codes. Anything
// unrecognised is attached to the context for ErrorHandler to log and
// answer with a generic 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrUnknownCollection):
		c.JSON(http.StatusNotFound, apierror.New(apierror.CodeUnknownCollection, err.Error()))
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, apierror.New(apierror.CodeNotFound, err.Error()))
	case errors.Is(err, repository.ErrConflict):
		c.JSON(http.StatusConflict, apierror.New(apierror.CodeConflict, err.Error()))
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, repository.ErrInvalidDocument),
		errors.Is(err, model.ErrInvalidRecord):
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeInvalidDocument, err.Error()))
	default:
		_ = c.Error(err)
	}
}

// readBody returns the raw JSON body, capped at maxBodyBytes.
func readBody(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeInvalidDocument, "corpo do pedido inválido: "+err.Error()))
		return nil, false
	}
	if len(raw) == 0 {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeInvalidDocument, "corpo do pedido vazio"))
		return nil, false
	}
	return raw, true
}

// parseSince reads the optional ?since= filter (RFC 3339, fractional seconds allowed).
func parseSince(c *gin.Context) (*time.Time, bool) {
	v := c.Query("since")
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeInvalidDocument, "parâmetro since inválido, use RFC 3339"))
		return nil, false
	}
	t = t.UTC()
	return &t, true
}
