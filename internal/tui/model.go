// Package tui renders the desk dashboard served over SSH: live tickets with
// current marks, closed tickets with realized returns, per-address track
// records, and an advisor prompt.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/service"
)

// DeskQuerier provides the ticket and summary reads the dashboard renders.
type DeskQuerier interface {
	ListTickets(ctx context.Context, f domain.TicketFilter) ([]service.TicketView, error)
	Summary(ctx context.Context, address string) (*domain.PnLSummary, error)
}

// AdvisorQuerier answers free-form questions on the Ask tab. Nil leaves the
// tab in place with a "not configured" reply.
type AdvisorQuerier interface {
	Ask(ctx context.Context, chatKey, question string) (string, error)
}

// Services bundles everything the dashboard can reach.
type Services struct {
	Desk     DeskQuerier
	Advisor  AdvisorQuerier
	UserID   int64
	Username string
}

// Dashboard tabs.
const (
	tabLive = iota
	tabClosed
	tabPnL
	tabAsk
	tabCount
)

var tabNames = [tabCount]string{"Live", "Closed", "P&L", "Ask"}

const refreshEvery = 5 * time.Second

// AppModel is the main Bubble Tea model for the SSH dashboard.
type AppModel struct {
	svc Services

	tab         int
	liveTable   table.Model
	closedTable table.Model
	question    textinput.Model

	live      []service.TicketView
	closed    []service.TicketView
	summaries []*domain.PnLSummary

	answer   string
	thinking bool
	loaded   bool
	err      error

	width  int
	height int
}

func NewAppModel(svc Services) AppModel {
	return AppModel{
		svc:         svc,
		liveTable:   newLiveTable(),
		closedTable: newClosedTable(),
		question:    newQuestionInput(),
	}
}

// SetSize adjusts the layout before the program starts; later resizes
// arrive as WindowSizeMsg.
func (m *AppModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.applySize()
}

func (m *AppModel) applySize() {
	h := m.height - 8
	if h < 3 {
		h = 3
	}
	m.liveTable.SetHeight(h)
	m.closedTable.SetHeight(h)
	if m.width > 20 {
		m.question.Width = m.width - 10
	}
}

// Init implements tea.Model.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.loadDesk(), refreshTick())
}

// Update implements tea.Model.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			// Only quit on 'q' when not typing a question
			if m.tab != tabAsk {
				return m, tea.Quit
			}
		case "tab":
			m.tab = (m.tab + 1) % tabCount
			return m.focusTab()
		case "shift+tab":
			m.tab = (m.tab + tabCount - 1) % tabCount
			return m.focusTab()
		case "r":
			if m.tab != tabAsk {
				return m, m.loadDesk()
			}
		case "enter":
			if m.tab == tabAsk && !m.thinking {
				return m.submitQuestion()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.applySize()
		return m, nil

	case deskLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.loaded = true
		m.live = msg.live
		m.closed = msg.closed
		m.summaries = msg.summaries
		m.liveTable.SetRows(liveRows(m.live))
		m.closedTable.SetRows(closedRows(m.closed))
		return m, nil

	case advisorReplyMsg:
		m.thinking = false
		if msg.err != nil {
			m.answer = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.answer = msg.answer
		}
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(m.loadDesk(), refreshTick())
	}

	// Delegate to the focused component
	var cmd tea.Cmd
	switch m.tab {
	case tabLive:
		m.liveTable, cmd = m.liveTable.Update(msg)
	case tabClosed:
		m.closedTable, cmd = m.closedTable.Update(msg)
	case tabAsk:
		m.question, cmd = m.question.Update(msg)
	}
	return m, cmd
}

func (m AppModel) focusTab() (tea.Model, tea.Cmd) {
	if m.tab == tabAsk {
		m.question.Focus()
		return m, textinput.Blink
	}
	m.question.Blur()
	return m, nil
}

func (m AppModel) submitQuestion() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.question.Value())
	if question == "" {
		return m, nil
	}
	if m.svc.Advisor == nil {
		m.answer = "Advisor is not configured"
		return m, nil
	}

	m.thinking = true
	m.answer = ""
	advisor := m.svc.Advisor
	chatKey := fmt.Sprintf("ssh:%d", m.svc.UserID)
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		answer, err := advisor.Ask(ctx, chatKey, question)
		return advisorReplyMsg{answer: answer, err: err}
	}
}

// loadDesk returns a command that fetches a full desk snapshot.
func (m AppModel) loadDesk() tea.Cmd {
	desk := m.svc.Desk
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var live []service.TicketView
		for _, state := range []domain.TicketState{domain.TicketPending, domain.TicketOpen} {
			batch, err := desk.ListTickets(ctx, domain.TicketFilter{State: state, Limit: 100})
			if err != nil {
				return deskLoadedMsg{err: err}
			}
			live = append(live, batch...)
		}

		closed, err := desk.ListTickets(ctx, domain.TicketFilter{State: domain.TicketClosed, Limit: 100})
		if err != nil {
			return deskLoadedMsg{err: err}
		}

		var summaries []*domain.PnLSummary
		for _, addr := range distinctAddresses(live, closed) {
			if sum, err := desk.Summary(ctx, addr); err == nil {
				summaries = append(summaries, sum)
			}
		}

		return deskLoadedMsg{live: live, closed: closed, summaries: summaries}
	}
}

// distinctAddresses collects addresses across ticket groups, sorted and
// capped so the P&L tab stays readable.
func distinctAddresses(groups ...[]service.TicketView) []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range groups {
		for _, v := range group {
			if v.Address != "" && !seen[v.Address] {
				seen[v.Address] = true
				out = append(out, v.Address)
			}
		}
	}
	sort.Strings(out)
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return refreshTickMsg(t) })
}

// View implements tea.Model.
func (m AppModel) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf("SigmaPilot desk (%s)", m.svc.Username)))
	s.WriteString("\n")
	s.WriteString(m.tabBar())
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\n")
	}

	switch m.tab {
	case tabLive:
		switch {
		case !m.loaded:
			s.WriteString("Loading desk...\n")
		case len(m.live) == 0:
			s.WriteString("No live tickets\n")
		default:
			s.WriteString(m.liveTable.View())
			s.WriteString("\n")
		}
	case tabClosed:
		switch {
		case !m.loaded:
			s.WriteString("Loading desk...\n")
		case len(m.closed) == 0:
			s.WriteString("No closed tickets\n")
		default:
			s.WriteString(m.closedTable.View())
			s.WriteString("\n")
		}
	case tabPnL:
		s.WriteString(m.pnlView())
	case tabAsk:
		s.WriteString(m.askView())
	}

	s.WriteString("\n")
	s.WriteString(m.helpLine())
	return s.String()
}

func (m AppModel) tabBar() string {
	parts := make([]string, tabCount)
	for i, name := range tabNames {
		if i == m.tab {
			parts[i] = activeTabStyle.Render("[" + name + "]")
		} else {
			parts[i] = tabStyle.Render(" " + name + " ")
		}
	}
	return strings.Join(parts, " ")
}

func (m AppModel) pnlView() string {
	if !m.loaded {
		return "Loading desk...\n"
	}
	if len(m.summaries) == 0 {
		return "No realized history yet\n"
	}
	var s strings.Builder
	for _, sum := range m.summaries {
		s.WriteString(fmt.Sprintf("%s\n  closed %d (%d wins / %d losses)  total %s  mean %s  best %s  worst %s\n\n",
			sum.Address, sum.Closed, sum.Wins, sum.Losses,
			plainReturn(sum.TotalReturn), plainReturn(sum.MeanReturn),
			plainReturn(sum.BestReturn), plainReturn(sum.WorstReturn)))
	}
	return s.String()
}

func (m AppModel) askView() string {
	var s strings.Builder
	s.WriteString("Ask the desk advisor:\n\n")
	s.WriteString(m.question.View())
	s.WriteString("\n\n")
	if m.thinking {
		s.WriteString("Thinking...\n")
	} else if m.answer != "" {
		s.WriteString(m.answer)
		s.WriteString("\n")
	}
	return s.String()
}

func (m AppModel) helpLine() string {
	if m.tab == tabAsk {
		return helpStyle.Render("tab: switch view | enter: ask | ctrl+c: quit")
	}
	return helpStyle.Render("tab: switch view | r: refresh | q: quit")
}
