package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fzheng/SigmaPilot/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	markSvc := service.NewMarkService(tracer, nil, nil)
	markSvc.ApplyUpdate(context.Background(), "BTC", 97000.5, handlerTime)

	h := &Handler{tracer: tracer, marks: markSvc}
	r := gin.New()
	r.GET("/health", h.Health)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var body struct {
		Status       string `json:"status"`
		MarkedAssets int    `json:"marked_assets"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("expected healthy status, got %q", body.Status)
	}
	if body.MarkedAssets != 1 {
		t.Errorf("expected 1 marked asset, got %d", body.MarkedAssets)
	}
}

func TestHealthWithoutMarkService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{tracer: trace.NewNoopTracerProvider().Tracer("test")}
	r := gin.New()
	r.GET("/health", h.Health)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}
