// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package healthcheck serves the kubelet probe endpoints: /healthz,
// /readyz, and /livez.
package healthcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

type Status int32

const (
	StatusStarting Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

type Response struct {
	Healthy bool `json:"healthy"`
}

type Config struct {
	Port int
}

func GetConfigFromEnv() Config {
	port := 8090
	if portStr := os.Getenv("HEALTH_CHECK_PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil && p > 0 && p < 65536 {
			port = p
		}
	}

	return Config{
		Port: port,
	}
}

type Server struct {
	port   int
	status atomic.Int32
	ready  atomic.Bool
	server *http.Server
}

func NewServer(config Config) *Server {
	if config.Port == 0 {
		config.Port = 8090
	}

	return &Server{
		port: config.Port,
	}
}

func (s *Server) SetStatus(status Status) {
	s.status.Store(int32(status))
	slog.Debug("Health check status updated", slog.String("status", status.String()))
}

func (s *Server) GetStatus() Status {
	return Status(s.status.Load())
}

func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	slog.Debug("Ready status updated", slog.Bool("ready", ready))
}

func (s *Server) IsReady() bool {
	return s.ready.Load()
}

// Start serves the probe endpoints until ctx is cancelled, then shuts the
// listener down.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthzHandler)
	mux.HandleFunc("/readyz", s.readyzHandler)
	mux.HandleFunc("/livez", s.livezHandler)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	s.SetStatus(StatusStarting)
	slog.Info("Starting health check server", slog.Int("port", s.port))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Health check server error", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	return s.Stop()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	slog.Info("Stopping health check server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeProbe(w, s.GetStatus() == StatusHealthy)
}

func (s *Server) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	writeProbe(w, s.IsReady())
}

// A starting process is alive; livez trips only when explicitly marked
// unhealthy.
func (s *Server) livezHandler(w http.ResponseWriter, _ *http.Request) {
	writeProbe(w, s.GetStatus() != StatusUnhealthy)
}

func writeProbe(w http.ResponseWriter, ok bool) {
	w.Header().Set("Content-Type", "application/json")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(Response{Healthy: ok}); err != nil {
		slog.Error("Failed to encode health check response", slog.Any("error", err))
	}
}
