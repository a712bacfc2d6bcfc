package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tinytelemetry/ponwatch/internal/dashboard"
	"github.com/tinytelemetry/ponwatch/internal/model"
	"github.com/tinytelemetry/ponwatch/internal/report"
	"github.com/tinytelemetry/ponwatch/internal/status"
	"github.com/tinytelemetry/ponwatch/internal/table"
	"go.uber.org/zap"
)

const defaultAddr = "0.0.0.0:8080"

// QueryStore is the narrow store contract required by the HTTP API.
type QueryStore interface {
	model.ReadAPI
}

// Dashboard serves the current merged alarm snapshot.
type Dashboard interface {
	Current() *dashboard.Snapshot
	Refresh(ctx context.Context) (*dashboard.Snapshot, error)
	View(ctx context.Context, f report.Filter) (*dashboard.Snapshot, *table.Table, error)
}

// StatusClient proxies live ONT status lookups.
type StatusClient interface {
	Serial(ctx context.Context, serial string) (status.Result, error)
	PortStatus(ctx context.Context, gestor string, p status.Port) (status.Result, error)
}

// Config holds the server's optional collaborators.
type Config struct {
	Addr        string
	Gatherer    prometheus.Gatherer
	TopOLTLimit int
	Logger      *zap.Logger
}

// Server provides the ponwatch HTTP API.
type Server struct {
	addr      string
	dash      Dashboard
	store     QueryStore
	status    StatusClient
	gatherer  prometheus.Gatherer
	topLimit  int
	logger    *zap.Logger
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(cfg Config, dash Dashboard, store QueryStore, st StatusClient) *Server {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.TopOLTLimit <= 0 {
		cfg.TopOLTLimit = model.DefaultTopOLTLimit
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      cfg.Addr,
		dash:      dash,
		store:     store,
		status:    st,
		gatherer:  cfg.Gatherer,
		topLimit:  cfg.TopOLTLimit,
		logger:    cfg.Logger,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/refresh", s.handleRefresh)

	api.GET("/alarms", s.handleAlarms)
	api.GET("/alarms.csv", s.handleAlarmsCSV)
	api.GET("/pivot", s.handlePivot)
	api.GET("/pivot.csv", s.handlePivotCSV)
	api.GET("/pivot.xlsx", s.handlePivotXLSX)
	api.GET("/top-olts", s.handleTopOLTs)
	api.GET("/facets", s.handleFacets)

	api.GET("/stats/gestor", s.handleGestorStats)
	api.GET("/schema", s.handleSchema)
	api.POST("/query", s.handleQuery)

	api.GET("/status/serial/:serial", s.handleSerialStatus)
	api.GET("/status/:gestor", s.handlePortStatus)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()
	s.logger.Info("http api listening", zap.String("addr", listener.Addr().String()))

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if snap := s.dash.Current(); snap != nil {
		resp["rows"] = snap.Alarms.Len()
		resp["last_refresh"] = snap.FetchedAt
		resp["refresh_id"] = snap.ID
	} else {
		resp["rows"] = 0
	}
	if s.store != nil {
		count, err := s.store.TotalAlarmCount()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
			return
		}
		resp["stored_rows"] = count
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRefresh(c *gin.Context) {
	snap, err := s.dash.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": fmt.Sprintf("refresh failed: %v", err)})
		return
	}
	c.JSON(http.StatusOK, snapshotSummary(snap))
}

func snapshotSummary(snap *dashboard.Snapshot) gin.H {
	rec := snap.Record()
	return gin.H{
		"refresh_id":     rec.ID,
		"fetched_at":     rec.FetchedAt,
		"huawei_rows":    rec.HuaweiRows,
		"zte_rows":       rec.ZTERows,
		"rows":           rec.TotalRows(),
		"clients_loaded": snap.ClientsLoaded,
		"client_matches": rec.ClientMatches,
	}
}

func (s *Server) handleGestorStats(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alarm store not available"})
		return
	}
	counts, err := s.store.GestorCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read gestor counts"})
		return
	}
	refreshes, err := s.store.RecentRefreshes(10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read refresh history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"gestor":    counts,
		"refreshes": refreshes,
	})
}

func (s *Server) handleSchema(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alarm store not available"})
		return
	}
	description := s.store.GetSchemaDescription()

	columns, err := s.store.ExecuteQuery(
		"SELECT table_name, column_name, data_type FROM information_schema.columns WHERE table_schema = 'main' ORDER BY table_name, ordinal_position",
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read schema metadata"})
		return
	}

	schema := make(map[string][]map[string]string)
	for _, row := range columns {
		tableName := fmt.Sprintf("%v", row["table_name"])
		schema[tableName] = append(schema[tableName], map[string]string{
			"column": fmt.Sprintf("%v", row["column_name"]),
			"type":   fmt.Sprintf("%v", row["data_type"]),
		})
	}

	counts, err := s.store.TableRowCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read table row counts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"description": description,
		"tables":      schema,
		"row_counts":  counts,
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alarm store not available"})
		return
	}
	var req struct {
		SQL string `json:"sql" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing sql field"})
		return
	}

	results, err := s.store.ExecuteQuery(req.SQL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var columns []string
	if len(results) > 0 {
		for col := range results[0] {
			columns = append(columns, col)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"columns":   columns,
		"rows":      results,
		"row_count": len(results),
	})
}
