package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"github.com/fzheng/SigmaPilot/internal/service"
)

func newLiveTable() table.Model {
	columns := []table.Column{
		{Title: "ID", Width: 14},
		{Title: "State", Width: 8},
		{Title: "Side", Width: 6},
		{Title: "Asset", Width: 6},
		{Title: "Address", Width: 12},
		{Title: "Conf", Width: 5},
		{Title: "Entry", Width: 12},
		{Title: "Mark", Width: 12},
		{Title: "Unrealized", Width: 12},
	}
	return newTicketTable(columns)
}

func newClosedTable() table.Model {
	columns := []table.Column{
		{Title: "ID", Width: 14},
		{Title: "Side", Width: 6},
		{Title: "Asset", Width: 6},
		{Title: "Address", Width: 12},
		{Title: "Entry", Width: 12},
		{Title: "Exit", Width: 12},
		{Title: "Realized", Width: 12},
		{Title: "Flags", Width: 8},
	}
	return newTicketTable(columns)
}

func newTicketTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

func newQuestionInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "How is the book looking?"
	ti.CharLimit = 280
	ti.Width = 70
	ti.Prompt = "> "
	return ti
}

func liveRows(views []service.TicketView) []table.Row {
	rows := make([]table.Row, 0, len(views))
	for _, v := range views {
		rows = append(rows, table.Row{
			v.ID,
			string(v.State),
			strings.ToUpper(string(v.Side)),
			v.Asset,
			shortAddress(v.Address),
			fmt.Sprintf("%.2f", v.Confidence),
			formatPrice(v.EntryPrice),
			formatPrice(v.Mark),
			formatReturn(v.UnrealizedPnL),
		})
	}
	return rows
}

func closedRows(views []service.TicketView) []table.Row {
	rows := make([]table.Row, 0, len(views))
	for _, v := range views {
		flags := ""
		if v.Suspect {
			flags = "SUSPECT"
		}
		rows = append(rows, table.Row{
			v.ID,
			strings.ToUpper(string(v.Side)),
			v.Asset,
			shortAddress(v.Address),
			formatPrice(v.EntryPrice),
			formatPrice(v.ExitPrice),
			formatReturn(v.RealizedPnL),
			flags,
		})
	}
	return rows
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:10] + ".."
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.6g", *p)
}

// formatReturn renders a fractional return as a percentage with a
// direction marker. Plain text keeps table column widths honest.
func formatReturn(r *float64) string {
	if r == nil {
		return "-"
	}
	s := fmt.Sprintf("%+.2f%%", *r*100)
	switch {
	case *r > 0:
		return s + " ▲"
	case *r < 0:
		return s + " ▼"
	}
	return s
}

func plainReturn(r float64) string {
	return fmt.Sprintf("%+.2f%%", r*100)
}
