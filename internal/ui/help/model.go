package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/sms-messenger/internal/gateway"
	"github.com/nhle/sms-messenger/internal/keys"
	"github.com/nhle/sms-messenger/internal/theme"
)

// Model is the help overlay: key bindings followed by the carrier gateway
// table.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	m.help.Width = m.width - 4
	m.help.ShowAll = true

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		titleStyle.Render("Carrier Gateways"),
		carrierTable(),
	)

	return theme.PanelStyle.
		Width(max(0, m.width-4)).
		Height(max(0, m.height-4)).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}

func carrierTable() string {
	table := gateway.Gateways()
	carriers := gateway.Carriers()

	width := 0
	for _, c := range carriers {
		width = max(width, len(c))
	}

	var b strings.Builder
	for _, c := range carriers {
		fmt.Fprintf(&b, "%-*s  %s\n", width, c, theme.DimmedStyle.Render("number@"+table[c]))
	}
	return strings.TrimRight(b.String(), "\n")
}
