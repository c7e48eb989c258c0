package commands

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"i4.energy/across/emtool/unlock"
)

// Server exposes the modem and its workflows over HTTP. Requests are
// serialized, since the modem runs one command at a time.
type Server struct {
	Logger   *slog.Logger
	Modem    unlock.Modem
	Workflow *unlock.Workflow

	mu     sync.Mutex
	router *gin.Engine
}

// NewServer creates a Server and registers its routes.
func NewServer(logger *slog.Logger, m unlock.Modem, w *unlock.Workflow) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		Logger:   logger,
		Modem:    m,
		Workflow: w,
		router:   gin.New(),
	}
	s.router.Use(gin.Recovery(), s.logRequest)
	s.setupRoutes()
	return s
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.GET("/info", s.handleInfo)
	s.router.GET("/usb", s.handleUSBInfo)
	s.router.POST("/unlock", s.handleUnlock)
	s.router.POST("/imei", s.handleRepairIMEI)
	s.router.POST("/profile/generic", s.handleRestoreGeneric)
}

func (s *Server) logRequest(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.Logger.Info("Request handled",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}

func (s *Server) sendError(c *gin.Context, message string, statusCode int) {
	c.JSON(statusCode, gin.H{"message": message})
}

// resultResponse is the JSON form of an unlock.Result.
type resultResponse struct {
	State        string `json:"state"`
	Reason       string `json:"reason,omitempty"`
	Step         string `json:"step,omitempty"`
	Class        string `json:"class,omitempty"`
	Error        string `json:"error,omitempty"`
	Unsafe       bool   `json:"unsafe,omitempty"`
	PreviousIMEI string `json:"previous_imei,omitempty"`
	CurrentIMEI  string `json:"current_imei,omitempty"`
}

func (s *Server) sendResult(c *gin.Context, res unlock.Result) {
	resp := resultResponse{
		State:        res.State.String(),
		Reason:       string(res.Reason),
		Step:         res.Step,
		Class:        string(res.Class),
		Unsafe:       res.Unsafe,
		PreviousIMEI: res.PreviousIMEI,
		CurrentIMEI:  res.CurrentIMEI,
	}
	if res.Cause != nil {
		resp.Error = res.Cause.Error()
	}
	c.JSON(resultStatus(res), resp)
}

func resultStatus(res unlock.Result) int {
	switch {
	case res.OK():
		return http.StatusOK
	case res.Class == unlock.ClassValidation:
		return http.StatusBadRequest
	case res.Class == unlock.ClassIncomplete:
		return http.StatusGatewayTimeout
	case res.Unsafe:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleInfo(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.readInfo(c.Request.Context())
	if err != nil {
		s.Logger.Error("Failed to read device info", "error", err)
		s.sendError(c, err.Error(), http.StatusBadGateway)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) readInfo(ctx context.Context) (map[string]string, error) {
	if !s.Modem.IsOpen() {
		if err := s.Modem.Open(ctx); err != nil {
			return nil, err
		}
		defer s.Modem.Close()
	}
	return s.Modem.Info(ctx)
}

func (s *Server) handleUSBInfo(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, res := s.Workflow.USBInfo(c.Request.Context())
	if !res.OK() {
		s.sendResult(c, res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

func (s *Server) handleUnlock(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendResult(c, s.Workflow.Unlock(c.Request.Context()))
}

func (s *Server) handleRepairIMEI(c *gin.Context) {
	var req struct {
		IMEI string `json:"imei" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.sendError(c, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.Workflow.RepairIMEI(c.Request.Context(), req.IMEI)
	if res.Unsafe {
		s.Logger.Error("IMEI repair left the device in an uncertain state", "step", res.Step, "reason", res.Reason)
	}
	s.sendResult(c, res)
}

func (s *Server) handleRestoreGeneric(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendResult(c, s.Workflow.RestoreGenericProfile(c.Request.Context()))
}
