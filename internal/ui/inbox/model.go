package inbox

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/sms-messenger/internal/keys"
	"github.com/nhle/sms-messenger/internal/messenger"
	"github.com/nhle/sms-messenger/internal/theme"
	"github.com/nhle/sms-messenger/internal/ui"
)

// DeleteRequestMsg asks the app to delete replies by UID.
type DeleteRequestMsg struct {
	Address string
	UIDs    []messenger.UID
}

// DeleteAllRequestMsg asks the app to delete every reply from a contact.
type DeleteAllRequestMsg struct {
	Address string
}

// ComposeRequestMsg asks the app to open the compose form for a contact.
type ComposeRequestMsg struct {
	Address string
}

// RefreshRequestMsg asks the app to check a contact for new replies.
type RefreshRequestMsg struct {
	Address string
}

// messageItem is one fetched reply in the list.
type messageItem struct {
	msg messenger.InboundMessage
}

func (i messageItem) FilterValue() string { return i.text() }

// text joins the reply's parts on one line.
func (i messageItem) text() string {
	return strings.Join(strings.Fields(strings.Join(i.msg.Bodies, " ")), " ")
}

// delegate renders one reply per line.
type delegate struct{}

func (d delegate) Height() int                             { return 1 }
func (d delegate) Spacing() int                            { return 0 }
func (d delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(messageItem)
	if !ok {
		return
	}

	uid := theme.DimmedStyle.Render(fmt.Sprintf("#%-5d", it.msg.UID))
	line := uid + " " + it.text()

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}

// Model lists the replies from one contact at a time, with a tab row to
// switch contacts.
type Model struct {
	list     list.Model
	viewport viewport.Model
	keys     *keys.KeyMap
	contacts []ui.Contact
	current  int
	messages map[string][]messenger.InboundMessage
	unseen   map[string]int
	expanded bool
	width    int
	height   int
}

// New creates an inbox over contacts.
func New(contacts []ui.Contact, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, delegate{}, width, max(0, height-2))
	l.SetShowTitle(false)
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.SetStatusBarItemName("reply", "replies")

	return Model{
		list:     l,
		viewport: viewport.New(width, max(0, height-2)),
		keys:     k,
		contacts: contacts,
		messages: make(map[string][]messenger.InboundMessage),
		unseen:   make(map[string]int),
		width:    width,
		height:   height,
	}
}

// Current returns the contact whose replies are shown.
func (m Model) Current() (ui.Contact, bool) {
	if len(m.contacts) == 0 {
		return ui.Contact{}, false
	}
	return m.contacts[m.current], true
}

// Messages returns the replies last loaded for address.
func (m Model) Messages(address string) []messenger.InboundMessage {
	return m.messages[address]
}

// Unseen returns how many new replies arrived for address while another
// contact was shown.
func (m Model) Unseen(address string) int {
	return m.unseen[address]
}

// SetMessages replaces the replies for address. newCount replies are
// counted as unseen unless address is on screen.
func (m *Model) SetMessages(address string, msgs []messenger.InboundMessage, newCount int) tea.Cmd {
	m.messages[address] = msgs

	cur, ok := m.Current()
	if ok && cur.Address == address {
		return m.syncItems()
	}
	m.unseen[address] += newCount
	return nil
}

// RemoveUIDs drops deleted replies from address without waiting for the
// next poll.
func (m *Model) RemoveUIDs(address string, uids []messenger.UID) tea.Cmd {
	gone := make(map[messenger.UID]bool, len(uids))
	for _, uid := range uids {
		gone[uid] = true
	}

	var kept []messenger.InboundMessage
	for _, msg := range m.messages[address] {
		if !gone[msg.UID] {
			kept = append(kept, msg)
		}
	}
	return m.SetMessages(address, kept, 0)
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	if m.expanded {
		if key.Matches(keyMsg, m.keys.Back, m.keys.Expand) {
			m.expanded = false
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	cur, hasContact := m.Current()

	switch {
	case key.Matches(keyMsg, m.keys.NextContact):
		return m, m.switchContact(1)

	case key.Matches(keyMsg, m.keys.PrevContact):
		return m, m.switchContact(-1)

	case key.Matches(keyMsg, m.keys.Compose):
		return m, emit(ComposeRequestMsg{Address: cur.Address})

	case !hasContact:
		return m, nil

	case key.Matches(keyMsg, m.keys.Refresh):
		return m, emit(RefreshRequestMsg{Address: cur.Address})

	case key.Matches(keyMsg, m.keys.Delete):
		it, ok := m.list.SelectedItem().(messageItem)
		if !ok {
			return m, nil
		}
		return m, emit(DeleteRequestMsg{Address: cur.Address, UIDs: []messenger.UID{it.msg.UID}})

	case key.Matches(keyMsg, m.keys.DeleteAll):
		if len(m.messages[cur.Address]) == 0 {
			return m, nil
		}
		return m, emit(DeleteAllRequestMsg{Address: cur.Address})

	case key.Matches(keyMsg, m.keys.Expand):
		it, ok := m.list.SelectedItem().(messageItem)
		if !ok {
			return m, nil
		}
		m.expanded = true
		m.viewport.SetContent(strings.Join(it.msg.Bodies, "\n"))
		m.viewport.GotoTop()
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the contact tabs and either the reply list or the full
// text of the selected reply.
func (m Model) View() string {
	if len(m.contacts) == 0 {
		return theme.HelpStyle.Render(
			"No contacts configured. Add some under 'contacts' in the config file, or press n to text an address.",
		)
	}

	body := m.list.View()
	if m.expanded {
		body = theme.PanelStyle.Width(max(0, m.width-4)).Render(m.viewport.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.tabs(), "", body)
}

// SetSize updates the inbox dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(0, height-2))
	m.viewport.Width = max(0, width-8)
	m.viewport.Height = max(0, height-6)
}

func (m Model) tabs() string {
	tabs := make([]string, 0, len(m.contacts))
	for i, c := range m.contacts {
		label := c.Label()
		if n := m.unseen[c.Address]; n > 0 {
			label += theme.CountStyle(n).Render(fmt.Sprintf(" (%d)", n))
		}
		if i == m.current {
			tabs = append(tabs, theme.ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, theme.TabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) switchContact(step int) tea.Cmd {
	if len(m.contacts) < 2 {
		return nil
	}
	m.current = (m.current + step + len(m.contacts)) % len(m.contacts)
	m.expanded = false
	return m.syncItems()
}

// syncItems loads the current contact's replies into the list and clears
// its unseen counter.
func (m *Model) syncItems() tea.Cmd {
	cur, ok := m.Current()
	if !ok {
		return nil
	}
	delete(m.unseen, cur.Address)

	msgs := m.messages[cur.Address]
	items := make([]list.Item, len(msgs))
	for i, msg := range msgs {
		items[i] = messageItem{msg: msg}
	}
	return m.list.SetItems(items)
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
