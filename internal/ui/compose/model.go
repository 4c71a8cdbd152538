package compose

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/sms-messenger/internal/theme"
	"github.com/nhle/sms-messenger/internal/ui"
)

// SendRequestMsg is dispatched when the user submits the form.
type SendRequestMsg struct {
	To   []string
	Body string
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	contact string
	address string
	body    string
}

// Model is the Bubble Tea model for writing a new text.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	contacts []ui.Contact
	width    int
	height   int
}

// New creates a compose form offering contacts as recipients.
func New(contacts []ui.Contact, width, height int) Model {
	return Model{
		fb:       &formBindings{},
		contacts: contacts,
		width:    width,
		height:   height,
	}
}

// Start resets the form with address preselected. An address that is not a
// known contact goes into the free-form field.
func (m *Model) Start(address string) tea.Cmd {
	m.fb.contact = ""
	m.fb.address = ""
	m.fb.body = ""
	for _, c := range m.contacts {
		if c.Address == address {
			m.fb.contact = address
		}
	}
	if m.fb.contact == "" {
		m.fb.address = address
	}

	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the compose form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		req := m.request()
		m.form = nil
		return m, func() tea.Msg { return req }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the compose form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("New Text") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// request resolves the submitted fields. The free-form address wins over
// the contact picker.
func (m Model) request() SendRequestMsg {
	to := strings.TrimSpace(m.fb.address)
	if to == "" {
		to = m.fb.contact
	}

	var recipients []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return SendRequestMsg{To: recipients, Body: m.fb.body}
}

func (m *Model) buildForm() *huh.Form {
	var fields []huh.Field

	if len(m.contacts) > 0 {
		options := make([]huh.Option[string], 0, len(m.contacts)+1)
		for _, c := range m.contacts {
			options = append(options, huh.NewOption(c.Label()+" <"+c.Address+">", c.Address))
		}
		options = append(options, huh.NewOption("Other address", ""))

		fields = append(fields,
			huh.NewSelect[string]().
				Title("To").
				Options(options...).
				Value(&m.fb.contact),
		)
	}

	fields = append(fields,
		huh.NewInput().
			Title("Address").
			Description("Gateway addresses, comma separated. Overrides the contact above.").
			Placeholder("5551234567@vtext.com").
			Value(&m.fb.address).
			Validate(m.validateAddress),
		huh.NewText().
			Title("Message").
			CharLimit(1000).
			Value(&m.fb.body).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("message must not be empty")
				}
				return nil
			}),
	)

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithShowHelp(true)
}

func (m *Model) validateAddress(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		if m.fb.contact == "" {
			return errors.New("pick a contact or type an address")
		}
		return nil
	}
	for _, addr := range strings.Split(s, ",") {
		if addr = strings.TrimSpace(addr); addr != "" && !strings.Contains(addr, "@") {
			return errors.New(addr + " is not an email address")
		}
	}
	return nil
}

func (m Model) formWidth() int {
	return max(20, min(m.width-4, 80))
}
