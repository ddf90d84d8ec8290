// Package status serves health, state and metrics of the vehicle
// over HTTP for the ground crew.
package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/robotalks/aura.go/pkg/board"
	"github.com/robotalks/aura.go/pkg/framework"
	"github.com/robotalks/aura.go/pkg/remote"
)

// Config of the status server.
type Config struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout" yaml:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
}

// Sources provides the state reported by /status. Nil members are omitted.
type Sources struct {
	VehicleID string
	Session   string
	Loop      *framework.Loop
	Remote    func() remote.Status
	Board     func() board.Status
	// Commanded reports what the ground station asked for.
	Commanded func() any
}

// Report is the /status document.
type Report struct {
	Vehicle string         `json:"vehicle"`
	Session string         `json:"session,omitempty"`
	Uptime  string         `json:"uptime"`
	Ticks   uint64         `json:"ticks"`
	Overrun uint64         `json:"overruns"`
	Remote  *remote.Status `json:"remote,omitempty"`
	Board   *board.Status  `json:"board,omitempty"`
	// Commanded is any JSON-encodable value.
	Commanded any `json:"commanded,omitempty"`
}

// Server is the status HTTP server.
type Server struct {
	Sources Sources

	srv     *http.Server
	started time.Time
}

// New creates the server. metrics may be nil.
func New(conf Config, src Sources, metrics http.Handler) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{Sources: src, started: time.Now()}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if s.ready() {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "board not configured")
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Report())
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	s.srv = &http.Server{
		Addr:         conf.Addr,
		Handler:      r,
		ReadTimeout:  conf.ReadTimeout,
		WriteTimeout: conf.WriteTimeout,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) ready() bool {
	if fn := s.Sources.Board; fn != nil {
		return fn().Configured
	}
	return true
}

// Report collects the current state.
func (s *Server) Report() Report {
	r := Report{
		Vehicle: s.Sources.VehicleID,
		Session: s.Sources.Session,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if l := s.Sources.Loop; l != nil {
		r.Ticks, r.Overrun = l.Ticks(), l.Overruns()
	}
	if fn := s.Sources.Remote; fn != nil {
		st := fn()
		r.Remote = &st
	}
	if fn := s.Sources.Board; fn != nil {
		st := fn()
		r.Board = &st
	}
	if fn := s.Sources.Commanded; fn != nil {
		r.Commanded = fn()
	}
	return r
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		glog.Infof("status server listening on %s", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}
