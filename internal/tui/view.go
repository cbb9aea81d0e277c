package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/filialwatch/internal/models"
	"github.com/julianstephens/filialwatch/internal/utils"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case StateMark, StateNote, StateLogin:
		content = docStyle.Render(m.form.View())
	default:
		content = m.viewGrid()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewHeader(),
		m.viewTabs(),
		content,
		m.viewMessage(),
		m.help.View(m),
	)
}

func (m Model) viewHeader() string {
	left := lipgloss.JoinHorizontal(lipgloss.Top,
		m.connBadge(),
		" ",
		m.sessionBadge(models.SessionOperador, m.operator),
		" ",
		m.sessionBadge(models.SessionAdmin, m.admin),
	)
	clock := mutedStyle.Render(fmt.Sprintf("%s %s  %s",
		utils.WeekdayName(m.now), utils.FormatLocal(m.now), m.now.Format("15:04:05")))
	return docStyle.Render(left + "  " + clock)
}

func (m Model) connBadge() string {
	label := m.conn.Label()
	switch {
	case !m.conn.Known:
		return connectingStyle.Render(label)
	case m.conn.Connected:
		return onlineStyle.Render(label)
	default:
		return offlineStyle.Render(label)
	}
}

func (m Model) sessionBadge(kind models.SessionKind, s *models.Session) string {
	if s == nil {
		return mutedStyle.Render(string(kind) + ": -")
	}
	return successStyle.Render(fmt.Sprintf("%s: %s", kind, s.Username))
}

func (m Model) viewTabs() string {
	programs := m.programs()
	if len(programs) == 0 {
		return inactiveTabStyle.Render("Sin programas activos")
	}
	var tabs []string
	for _, p := range programs {
		title := fmt.Sprintf("%s %s", p.Horario, p.Nombre)
		if p.ID == m.programID {
			tabs = append(tabs, activeTabStyle.Render(title))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewGrid() string {
	var b strings.Builder

	period := "Semana " + m.week.Label()
	if m.loading {
		period += " " + m.spinner.View()
	}
	b.WriteString(period)
	if m.filter != "" {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  filtro: %q", m.filter)))
	}
	b.WriteString("\n")

	b.WriteString(m.grid.View(m.report, m.state == StateGrid))
	b.WriteString("\n")

	s := m.stats()
	b.WriteString(fmt.Sprintf("Efectividad %d%% · %d transmitidas · %d tardías · %d no transmitidas · %d pendientes",
		s.Effectiveness(), s.Transmitidas, s.Tardias, s.NoTransmitidas, s.Pendientes))
	if n := m.deps.Store.PendingCount(); n > 0 {
		b.WriteString(dangerStyle.Render(fmt.Sprintf("  %d sin sincronizar", n)))
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(m.grid.Detail(m.report)))

	if m.state == StateFilter {
		b.WriteString("\n")
		b.WriteString(m.filterInput.View())
	}
	return docStyle.Render(b.String())
}

func (m Model) viewMessage() string {
	if m.message == "" {
		return ""
	}
	if m.messageIsErr {
		return docStyle.Render(dangerStyle.Render(m.message))
	}
	return docStyle.Render(successStyle.Render(m.message))
}
