package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/ponwatch/internal/status"
)

func (s *Server) handleSerialStatus(c *gin.Context) {
	if s.status == nil {
		statusError(c, status.ErrNotConfigured)
		return
	}
	res, err := s.status.Serial(c.Request.Context(), c.Param("serial"))
	if err != nil {
		statusError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handlePortStatus(c *gin.Context) {
	if s.status == nil {
		statusError(c, status.ErrNotConfigured)
		return
	}
	port := status.Port{
		DEV: c.Query("dev"),
		FN:  c.Query("fn"),
		SN:  c.Query("sn"),
		PN:  c.Query("pn"),
	}
	res, err := s.status.PortStatus(c.Request.Context(), c.Param("gestor"), port)
	if err != nil {
		statusError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// statusError maps status client failures onto HTTP codes. Upstream failures
// are 502 so callers can tell them apart from bad input.
func statusError(c *gin.Context, err error) {
	var httpErr *status.HTTPError
	var missing *status.MissingFieldsError
	switch {
	case errors.Is(err, status.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, status.ErrUnknownGestor):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &missing):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "missing": missing.Fields})
	case errors.As(err, &httpErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "upstream_status": httpErr.StatusCode})
	case errors.Is(err, status.ErrUnavailable), errors.Is(err, status.ErrInvalidResponse):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
