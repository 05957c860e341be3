package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fzheng/SigmaPilot/internal/domain"

	"github.com/gin-gonic/gin"
)

func TestPnLSummaryRequiresAddress(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newDeskHandler(&stubTicketReader{}, nil)

	r := gin.New()
	r.GET("/api/pnl/summary", h.PnLSummary)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/pnl/summary", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestPnLSummaryReturnsAggregate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tickets := &stubTicketReader{summary: &domain.PnLSummary{
		Address:     "0xabc",
		Closed:      4,
		Wins:        3,
		Losses:      1,
		TotalReturn: 0.12,
		MeanReturn:  0.03,
		BestReturn:  0.08,
		WorstReturn: -0.02,
	}}
	h := newDeskHandler(tickets, nil)

	r := gin.New()
	r.GET("/api/pnl/summary", h.PnLSummary)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/pnl/summary?address=0xabc", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var summary domain.PnLSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if summary.Address != "0xabc" || summary.Closed != 4 || summary.Wins != 3 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.TotalReturn != 0.12 {
		t.Errorf("expected total return 0.12, got %f", summary.TotalReturn)
	}
}
