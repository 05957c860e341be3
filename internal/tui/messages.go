package tui

import (
	"time"

	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/service"
)

// deskLoadedMsg carries a fresh snapshot of the desk.
type deskLoadedMsg struct {
	live      []service.TicketView
	closed    []service.TicketView
	summaries []*domain.PnLSummary
	err       error
}

// advisorReplyMsg carries the advisor's answer to a question.
type advisorReplyMsg struct {
	answer string
	err    error
}

// refreshTickMsg triggers a periodic desk reload.
type refreshTickMsg time.Time
