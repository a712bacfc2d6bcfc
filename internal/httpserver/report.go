package httpserver

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/ponwatch/internal/dashboard"
	"github.com/tinytelemetry/ponwatch/internal/report"
	"github.com/tinytelemetry/ponwatch/internal/table"
	"go.uber.org/zap"
)

const (
	defaultAlarmLimit = 500

	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var errBadRequest = errors.New("bad request")

// parseFilter reads from, to, gestor, tipo_final and str_name.
func parseFilter(c *gin.Context) (report.Filter, error) {
	var f report.Filter
	if v := c.Query("from"); v != "" {
		d, err := report.ParseDate(v)
		if err != nil {
			return f, fmt.Errorf("%w: invalid from date %q, want YYYY-MM-DD", errBadRequest, v)
		}
		f.From = d
	}
	if v := c.Query("to"); v != "" {
		d, err := report.ParseDate(v)
		if err != nil {
			return f, fmt.Errorf("%w: invalid to date %q, want YYYY-MM-DD", errBadRequest, v)
		}
		f.To = d
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, fmt.Errorf("%w: to is before from", errBadRequest)
	}
	gestor, err := report.ParseGestor(c.Query("gestor"))
	if err != nil {
		return f, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	f.Gestor = gestor
	f.TipoFinal = c.QueryArray("tipo_final")
	f.StrName = c.QueryArray("str_name")
	return f, nil
}

func parseLimit(c *gin.Context, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", errBadRequest)
	}
	return n, nil
}

// view resolves the filtered rows for a request, writing the error response
// itself when it fails.
func (s *Server) view(c *gin.Context) (*dashboard.Snapshot, *table.Table, bool) {
	f, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	snap, rows, err := s.dash.View(c.Request.Context(), f)
	if err != nil {
		s.logger.Warn("no alarm snapshot available", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alarm data unavailable"})
		return nil, nil, false
	}
	return snap, rows, true
}

func (s *Server) pivot(c *gin.Context) (*dashboard.Snapshot, *report.Pivot, bool) {
	snap, rows, ok := s.view(c)
	if !ok {
		return nil, nil, false
	}
	p, err := report.BuildPivot(rows, report.DefaultPivotSpec)
	if err != nil {
		if missing, ok := table.MissingColumns(err); ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   err.Error(),
				"missing": missing,
			})
			return nil, nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build pivot"})
		return nil, nil, false
	}
	return snap, p, true
}

func (s *Server) handleAlarms(c *gin.Context) {
	limit, err := parseLimit(c, defaultAlarmLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, rows, ok := s.view(c)
	if !ok {
		return
	}

	n := rows.Len()
	if n > limit {
		n = limit
	}
	out := make([]map[string]string, 0, n)
	for _, r := range rows.Rows[:n] {
		out = append(out, r)
	}

	c.JSON(http.StatusOK, gin.H{
		"refresh_id": snap.ID,
		"columns":    rows.Columns,
		"rows":       out,
		"total":      rows.Len(),
		"returned":   n,
	})
}

func (s *Server) handleAlarmsCSV(c *gin.Context) {
	_, rows, ok := s.view(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteTableCSV(&buf, rows); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode csv"})
		return
	}
	attachment(c, "alarmas_filtradas.csv", csvContentType, buf.Bytes())
}

func (s *Server) handlePivot(c *gin.Context) {
	limit, err := parseLimit(c, -1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, p, ok := s.pivot(c)
	if !ok {
		return
	}
	total := len(p.Rows)
	c.JSON(http.StatusOK, gin.H{
		"refresh_id": snap.ID,
		"total_rows": total,
		"pivot":      p.Head(limit),
	})
}

func (s *Server) handlePivotCSV(c *gin.Context) {
	_, p, ok := s.pivot(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WritePivotCSV(&buf, p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode csv"})
		return
	}
	attachment(c, "tabla_dinamica.csv", csvContentType, buf.Bytes())
}

func (s *Server) handlePivotXLSX(c *gin.Context) {
	_, p, ok := s.pivot(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WritePivotXLSX(&buf, p); err != nil {
		s.logger.Error("pivot workbook failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode workbook"})
		return
	}
	attachment(c, "tabla_dinamica.xlsx", xlsxContentType, buf.Bytes())
}

func (s *Server) handleTopOLTs(c *gin.Context) {
	limit, err := parseLimit(c, s.topLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, rows, ok := s.view(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"refresh_id": snap.ID,
		"top":        report.TopOLTs(rows, limit),
	})
}

// handleFacets lists filter options for the date and gestor selection; the
// multi-select parameters themselves are ignored so every option stays listed.
func (s *Server) handleFacets(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Del("tipo_final")
	q.Del("str_name")
	c.Request.URL.RawQuery = q.Encode()

	snap, rows, ok := s.view(c)
	if !ok {
		return
	}
	facets := report.BuildFacets(rows)
	all := report.BuildFacets(snap.Alarms)
	facets.MinDate, facets.MaxDate = all.MinDate, all.MaxDate
	facets.LastUpdate = all.LastUpdate

	c.JSON(http.StatusOK, gin.H{
		"refresh_id": snap.ID,
		"facets":     facets,
	})
}

func attachment(c *gin.Context, name, contentType string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, contentType, body)
}
