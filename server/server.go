// Package server exposes a session over HTTP: JSON control and editing
// routes, a websocket snapshot stream and a Prometheus endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/slo-sim/sim"
	"github.com/inference-sim/slo-sim/sim/session"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Server wires HTTP endpoints to a session.
type Server struct {
	mux      *http.ServeMux
	session  *session.Session
	hub      *Hub
	exporter *Exporter
	upgrader websocket.Upgrader
}

// New creates a session over cfg whose every snapshot is exported and
// broadcast to websocket subscribers.
func New(cfg sim.Config) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		hub:      NewHub(),
		exporter: NewExporter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.session = session.New(cfg, s.publish)
	s.exporter.Observe(s.session.Snapshot(), metricNames(s.session.Engine().Config()))
	s.register()
	return s
}

// Session returns the session the server drives.
func (s *Server) Session() *session.Session {
	return s.session
}

// ServeHTTP delegates to underlying mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close stops the engine and disconnects every subscriber.
func (s *Server) Close() {
	s.session.Close()
	s.hub.Close()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errorCh := make(chan error, 1)
	go func() {
		logrus.Infof("slo-sim server listening on %s", addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logrus.Info("slo-sim server stopped")
		return nil
	case err := <-errorCh:
		s.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) register() {
	s.handle("GET /healthz", s.handleHealthz)
	s.handle("GET /api/snapshot", s.handleSnapshot)
	s.handle("GET /api/config", s.handleGetConfig)
	s.handle("PUT /api/config", s.handlePutConfig)
	s.handle("POST /api/control/{action}", s.handleControl)
	s.handle("PUT /api/rps", s.handleSetRPS)
	s.handle("PUT /api/speed", s.handleSetSpeed)
	s.handle("POST /api/buckets", s.handleAddBucket)
	s.handle("PATCH /api/buckets/{id}", s.handleUpdateBucket)
	s.handle("DELETE /api/buckets/{id}", s.handleRemoveBucket)
	s.handle("POST /api/metrics", s.handleAddMetric)
	s.handle("PATCH /api/metrics/{id}", s.handleUpdateMetric)
	s.handle("DELETE /api/metrics/{id}", s.handleRemoveMetric)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.exporter.Registry(), promhttp.HandlerOpts{}))
}

// handle registers h behind the audit middleware, labelled by pattern.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, s.audit(pattern, h))
}

// publish runs on every engine snapshot. It must not call back into the
// session, whose lock may be held.
func (s *Server) publish(snap sim.SimulationSnapshot) {
	s.exporter.Observe(snap, metricNames(s.session.Engine().Config()))
	payload, err := json.Marshal(snap)
	if err != nil {
		logrus.Errorf("encoding snapshot: %v", err)
		return
	}
	s.hub.Broadcast(payload)
}

func metricNames(cfg sim.Config) map[string]string {
	names := make(map[string]string, len(cfg.Metrics))
	for _, m := range cfg.Metrics {
		names[m.ID] = m.Name
	}
	return names
}

type configResponse struct {
	Config           sim.Config `json:"config"`
	ValidationErrors []string   `json:"validationErrors"`
}

func (s *Server) configResponse() configResponse {
	problems := s.session.ValidationErrors()
	if problems == nil {
		problems = []string{}
	}
	return configResponse{Config: s.session.Config(), ValidationErrors: problems}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"engine":      s.session.Engine().Status(),
		"subscribers": s.hub.Len(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.configResponse())
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg sim.Config
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.session.SetConfig(cfg); err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.configResponse())
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	switch action := r.PathValue("action"); action {
	case "start":
		if err := s.session.Start(); err != nil {
			writeEditError(w, err)
			return
		}
	case "pause":
		s.session.Pause()
	case "reset":
		s.session.Reset()
	default:
		writeError(w, http.StatusNotFound, "unknown action "+action)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleSetRPS(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RPS float64 `json:"rps"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.session.SetRPS(payload.RPS); err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.configResponse())
}

func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SpeedMultiplier int `json:"speedMultiplier"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.session.SetSpeedMultiplier(payload.SpeedMultiplier); err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.configResponse())
}

func (s *Server) handleAddBucket(w http.ResponseWriter, r *http.Request) {
	id, err := s.session.AddBucket()
	if err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "config": s.session.Config()})
}

func (s *Server) handleUpdateBucket(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Percentage *float64 `json:"percentage"`
		LatencyMs  *float64 `json:"latencyMs"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id := r.PathValue("id")
	if payload.Percentage != nil {
		if err := s.session.SetBucketPercentage(id, *payload.Percentage); err != nil {
			writeEditError(w, err)
			return
		}
	}
	if payload.LatencyMs != nil {
		if err := s.session.SetBucketLatency(id, *payload.LatencyMs); err != nil {
			writeEditError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.configResponse())
}

func (s *Server) handleRemoveBucket(w http.ResponseWriter, r *http.Request) {
	if err := s.session.RemoveBucket(r.PathValue("id")); err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.configResponse())
}

func (s *Server) handleAddMetric(w http.ResponseWriter, r *http.Request) {
	id, err := s.session.AddMetric()
	if err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "config": s.session.Config()})
}

func (s *Server) handleUpdateMetric(w http.ResponseWriter, r *http.Request) {
	var patch session.MetricPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.session.UpdateMetric(r.PathValue("id"), patch); err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.configResponse())
}

func (s *Server) handleRemoveMetric(w http.ResponseWriter, r *http.Request) {
	if err := s.session.RemoveMetric(r.PathValue("id")); err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.configResponse())
}

// handleWS streams every snapshot to the connection, starting with the
// current one.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("websocket upgrade failed: %v", err)
		return
	}
	client := NewClient(conn)
	if payload, err := json.Marshal(s.session.Snapshot()); err == nil {
		if err := client.Send(payload); err != nil {
			return
		}
	}
	s.hub.Register(client)
	go func() {
		defer func() {
			s.hub.Unregister(client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// statusRecorder captures the response status for auditing.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, r)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		s.exporter.recordRequest(r.Method, route, status, duration)
		logrus.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
		}).Debug("http request")
	}
}
