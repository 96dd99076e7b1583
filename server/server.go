// Package server - HTTP and websocket front end for person detection.
package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nvr-ai/go-person-detector/annotate"
	"github.com/nvr-ai/go-person-detector/config"
	"github.com/nvr-ai/go-person-detector/events"
	"github.com/nvr-ai/go-person-detector/models/postprocess"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// ErrBadImage is returned when the request body cannot be decoded as an image.
var ErrBadImage = errors.New("request does not contain a decodable image")

const (
	// requestIDKey is the gin context key and response header for request ids.
	requestIDKey = "X-Request-ID"

	defaultEventsLimit = 20
	maxEventsLimit     = 500
)

// Detector finds target detections in a frame.
type Detector interface {
	Detect(ctx context.Context, img gocv.Mat) ([]postprocess.Detection, error)
}

// DetectResponse is the body of a detection reply.
type DetectResponse struct {
	ID         string                  `json:"id"`
	Detected   bool                    `json:"detected"`
	Detections []postprocess.Detection `json:"detections"`
	// AnnotatedImage is the base64 JPEG with boxes drawn, set only when
	// something was detected.
	AnnotatedImage string `json:"annotated_image,omitempty"`
}

// Server serves detection requests.
type Server struct {
	detector Detector
	config   config.ServerConfig
	metrics  *Metrics
	log      *zap.Logger
	router   *gin.Engine
	upgrader websocket.Upgrader
	events   events.Publisher
	target   string
	history  History
}

// Option configures a Server.
type Option func(*Server)

// History serves previously published events, newest first.
type History interface {
	Recent(ctx context.Context, limit int) ([]events.Event, error)
}

// WithHistory exposes GET /api/v1/events backed by h.
func WithHistory(h History) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithPublisher publishes an event for every frame with detections.
// target names the detected class in the events.
func WithPublisher(p events.Publisher, target string) Option {
	return func(s *Server) {
		s.events = p
		s.target = target
	}
}

// New creates a server and its routes.
//
// Arguments:
//   - detector: The frame detector.
//   - cfg: The server configuration. An empty OutputDir disables saving.
//   - log: The logger, nil for no logging.
//   - opts: Optional settings.
//
// Returns:
//   - *Server: The server.
func New(detector Detector, cfg config.ServerConfig, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		detector: detector,
		config:   cfg,
		metrics:  NewMetrics(),
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		events: events.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.accessLog())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{Registry: s.metrics.Registry})))
	r.POST("/api/v1/detect", s.handleDetect)
	r.GET("/ws/detect", s.handleStream)
	if s.history != nil {
		r.GET("/api/v1/events", s.handleEvents)
	}
	s.router = r

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.metrics.WatchProcess(ctx, 5*time.Second, s.log)

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down")
	}
	return nil
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDKey)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDKey, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// readImage returns the "image" field of multipart requests and the raw body
// of anything else.
func (s *Server) readImage(c *gin.Context) ([]byte, error) {
	if s.config.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadBytes)
	}

	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		return io.ReadAll(c.Request.Body)
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, errors.Wrap(err, "reading multipart field \"image\"")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) handleDetect(c *gin.Context) {
	data, err := s.readImage(c)
	if err != nil {
		s.metrics.Requests.WithLabelValues("http", "bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.process(c.Request.Context(), c.GetString(requestIDKey), "http", data)
	switch {
	case errors.Is(err, ErrBadImage):
		s.metrics.Requests.WithLabelValues("http", "bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		s.metrics.Requests.WithLabelValues("http", "error").Inc()
		s.log.Error("detection failed", zap.String("id", resp.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		s.metrics.Requests.WithLabelValues("http", "ok").Inc()
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) handleEvents(c *gin.Context) {
	limit := defaultEventsLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxEventsLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be between 1 and %d", maxEventsLimit)})
			return
		}
		limit = n
	}

	recent, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		s.log.Error("reading event history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": recent})
}

// handleStream upgrades to a websocket. Each binary message is an encoded
// frame; each reply is a DetectResponse or {"error": ...} as JSON.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	if s.config.MaxUploadBytes > 0 {
		conn.SetReadLimit(s.config.MaxUploadBytes)
	}

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			s.log.Debug("stream closed", zap.String("id", c.GetString(requestIDKey)), zap.Error(err))
			return
		}
		if mt != websocket.BinaryMessage {
			_ = conn.WriteJSON(gin.H{"error": "unsupported message type"})
			continue
		}

		resp, err := s.process(c.Request.Context(), uuid.NewString(), "websocket", msg)
		if err != nil {
			s.metrics.Requests.WithLabelValues("websocket", "error").Inc()
			_ = conn.WriteJSON(gin.H{"error": err.Error()})
			continue
		}
		s.metrics.Requests.WithLabelValues("websocket", "ok").Inc()
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

// process decodes data, detects, and annotates and saves the frame when a
// target was found.
func (s *Server) process(ctx context.Context, id, source string, data []byte) (DetectResponse, error) {
	resp := DetectResponse{ID: id}
	if len(data) == 0 {
		return resp, ErrBadImage
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		if err == nil {
			img.Close()
		}
		return resp, ErrBadImage
	}
	defer img.Close()

	start := time.Now()
	detections, err := s.detector.Detect(ctx, img)
	s.metrics.Inference.Observe(time.Since(start).Seconds())
	if err != nil {
		return resp, err
	}

	if detections == nil {
		detections = []postprocess.Detection{}
	}
	resp.Detections = detections
	resp.Detected = len(detections) > 0
	if !resp.Detected {
		s.log.Info("Person not detected.", zap.String("id", id))
		return resp, nil
	}
	s.metrics.Persons.Add(float64(len(detections)))
	s.log.Info("Person detected.", zap.String("id", id), zap.Int("count", len(detections)))

	if err := s.events.Publish(ctx, events.Event{
		ID:         id,
		Time:       time.Now().UTC(),
		Source:     source,
		Target:     s.target,
		Detections: detections,
	}); err != nil {
		s.log.Warn("publishing detection event", zap.String("id", id), zap.Error(err))
	}

	annotate.Draw(&img, detections)
	if s.config.OutputDir != "" {
		path, err := annotate.Save(s.config.OutputDir, id, img)
		if err != nil {
			return resp, err
		}
		s.log.Debug("saved annotated frame", zap.String("path", path))
	}
	encoded, err := annotate.Encode(img)
	if err != nil {
		return resp, err
	}
	resp.AnnotatedImage = base64.StdEncoding.EncodeToString(encoded)
	return resp, nil
}
