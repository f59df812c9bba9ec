package monitor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

// SnapshotFunc returns the summary of everything sent so far.
type SnapshotFunc func() *domain.Summary

// Server exposes health, prometheus metrics, the live summary and a websocket
// feed of sent readings.
type Server struct {
	hub    *Hub
	engine *gin.Engine
	http   *http.Server
	obs    ports.Observability

	stopHub context.CancelFunc
	hubDone chan struct{}
}

func NewServer(addr string, gatherer prometheus.Gatherer, snapshot SnapshotFunc, obs ports.Observability) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	hub := NewHub(obs, DefaultBacklog)
	s := &Server{
		hub:    hub,
		engine: engine,
		obs:    obs,
		http: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	engine.GET("/summary", func(c *gin.Context) {
		c.JSON(http.StatusOK, snapshot())
	})
	engine.GET("/ws", func(c *gin.Context) {
		hub.serve(c.Writer, c.Request)
	})
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Hub() *Hub { return s.hub }

// Start binds the listener synchronously and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.obs.LogInfo("monitor_listening", ports.Field{Key: "addr", Value: ln.Addr().String()})

	ctx, cancel := context.WithCancel(context.Background())
	s.stopHub, s.hubDone = cancel, make(chan struct{})
	go func() {
		defer close(s.hubDone)
		s.hub.Run(ctx)
	}()
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.obs.LogError("monitor_server", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopHub != nil {
		s.stopHub()
		<-s.hubDone
	}
	s.hub.closeAll()
	return s.http.Shutdown(ctx)
}
