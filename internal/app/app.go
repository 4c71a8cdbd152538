package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/sms-messenger/internal/journal"
	"github.com/nhle/sms-messenger/internal/messenger"
	"github.com/nhle/sms-messenger/internal/model"
	appsync "github.com/nhle/sms-messenger/internal/sync"
	"github.com/nhle/sms-messenger/internal/ui"
	"github.com/nhle/sms-messenger/internal/ui/compose"
	helpview "github.com/nhle/sms-messenger/internal/ui/help"
	"github.com/nhle/sms-messenger/internal/ui/inbox"
)

// Gateway is the slice of the messenger the interactive inbox drives.
type Gateway interface {
	Email() string
	FetchMessagesByUID(ctx context.Context, from string) ([]messenger.InboundMessage, error)
	SendMessage(ctx context.Context, body string, to []string, opts ...messenger.SendOption) (*messenger.SendResult, error)
	DeleteByUIDs(ctx context.Context, uids []messenger.UID) (*messenger.DeleteResult, error)
	DeleteBySender(ctx context.Context, from string) (*messenger.DeleteResult, error)
}

// opTimeout bounds a single send or delete started from the UI.
const opTimeout = 45 * time.Second

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewCompose
	ViewHelp
)

// sentResultMsg carries the outcome of a send.
type sentResultMsg struct {
	result *messenger.SendResult
	err    error
}

// deletedResultMsg carries the outcome of a delete.
type deletedResultMsg struct {
	address string
	uids    []messenger.UID
	result  *messenger.DeleteResult
	err     error
}

// Model is the root Bubble Tea model that routes between the inbox, the
// compose form and the help overlay.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	gw           Gateway
	journal      *journal.Recorder
	logger       *slog.Logger
	keys         *KeyMap
	inbox        inbox.Model
	compose      compose.Model
	helpView     helpview.Model
	poller       *appsync.Poller
	ready        bool
	status       string
	errMessage   string
}

// Options configures New.
type Options struct {
	Contacts     []model.Contact
	PollInterval time.Duration
	Journal      *journal.Recorder
	Logger       *slog.Logger
}

// New creates the root model. Contacts whose numbers do not resolve to a
// gateway address are skipped with a warning.
func New(gw Gateway, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	keys := DefaultKeyMap()
	poller := appsync.New(gw, opts.Journal, opts.PollInterval, logger)

	var contacts []ui.Contact
	for _, c := range opts.Contacts {
		addr, err := c.Address()
		if err != nil {
			logger.Warn("skipping contact", "name", c.Name, "error", err)
			continue
		}
		contacts = append(contacts, ui.Contact{Name: c.Name, Address: addr})
		poller.Watch(addr)
	}

	return Model{
		currentView: ViewInbox,
		gw:          gw,
		journal:     opts.Journal,
		logger:      logger,
		keys:        keys,
		inbox:       inbox.New(contacts, keys, 80, 24),
		compose:     compose.New(contacts, 80, 24),
		helpView:    helpview.New(keys, 80, 24),
		poller:      poller,
	}
}

// Init starts polling every contact.
func (m Model) Init() tea.Cmd {
	return m.poller.Start()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.inbox.SetSize(w, h)
		m.compose.SetSize(w, h)
		m.helpView.SetSize(w, h)
		// Forward so the huh form can lay itself out.
		return m.updateActiveView(msg)

	case appsync.SyncResultMsg:
		cmds := []tea.Cmd{m.poller.WaitForNextResult()}
		switch {
		case msg.AuthError != nil:
			m.errMessage = msg.AuthError.Message
		case msg.Error != nil:
			m.errMessage = fmt.Sprintf("%s: %v", msg.Address, msg.Error)
		default:
			m.errMessage = ""
			cmds = append(cmds, m.inbox.SetMessages(msg.Address, msg.Messages, msg.NewCount))
		}
		return m, tea.Batch(cmds...)

	case inbox.RefreshRequestMsg:
		m.poller.Refresh(msg.Address)
		m.status = "checking " + msg.Address
		return m, nil

	case inbox.ComposeRequestMsg:
		m.previousView = m.currentView
		m.currentView = ViewCompose
		return m, m.compose.Start(msg.Address)

	case inbox.DeleteRequestMsg:
		m.status = "deleting..."
		return m, m.deleteUIDs(msg.Address, msg.UIDs)

	case inbox.DeleteAllRequestMsg:
		m.status = "deleting all from " + msg.Address
		return m, m.deleteAll(msg.Address)

	case compose.SendRequestMsg:
		m.currentView = ViewInbox
		m.status = "sending..."
		return m, m.send(msg.To, msg.Body)

	case compose.CancelMsg:
		m.currentView = ViewInbox
		return m, nil

	case sentResultMsg:
		return m.handleSent(msg), nil

	case deletedResultMsg:
		if msg.err != nil {
			m.status = ""
			m.errMessage = "delete failed: " + msg.err.Error()
			return m, nil
		}
		m.errMessage = ""
		m.status = fmt.Sprintf("deleted %d from %s", msg.result.Expunged, msg.result.Folder)
		return m, m.inbox.RemoveUIDs(msg.address, msg.uids)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.poller.Stop()
			return m, tea.Quit

		case "q":
			if m.currentView == ViewInbox {
				m.poller.Stop()
				return m, tea.Quit
			}

		case "?":
			if m.currentView == ViewCompose {
				break
			}
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case "esc":
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewCompose:
		m.compose, cmd = m.compose.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("smsgw · "+m.gw.Email(), m.poller.Describe())
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.errMessage)

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewInbox:
		return m.inbox.View()
	case ViewCompose:
		return m.compose.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCompose:
		return "enter next/submit | esc cancel"
	default:
		if m.status != "" {
			return m.status
		}
		return "q quit | ? help | n new | r refresh | d delete | D delete all | tab contact"
	}
}

// handleSent reports a send outcome and journals what was accepted.
func (m Model) handleSent(msg sentResultMsg) Model {
	if msg.err != nil && msg.result == nil {
		m.status = ""
		m.errMessage = "send failed: " + msg.err.Error()
		return m
	}

	m.status = msg.result.Confirmation()
	m.errMessage = ""
	if msg.err != nil {
		m.errMessage = msg.err.Error()
	}
	return m
}

func (m Model) send(to []string, body string) tea.Cmd {
	gw, j, logger := m.gw, m.journal, m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		res, err := gw.SendMessage(ctx, body, to)
		if jerr := j.Sent(ctx, res); jerr != nil {
			logger.Warn("journal write failed", "error", jerr)
		}
		return sentResultMsg{result: res, err: err}
	}
}

func (m Model) deleteUIDs(address string, uids []messenger.UID) tea.Cmd {
	gw, j, logger := m.gw, m.journal, m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		res, err := gw.DeleteByUIDs(ctx, uids)
		if err == nil {
			if jerr := j.Deleted(ctx, model.DirectionReceived, "", res); jerr != nil {
				logger.Warn("journal write failed", "error", jerr)
			}
		}
		return deletedResultMsg{address: address, uids: uids, result: res, err: err}
	}
}

func (m Model) deleteAll(address string) tea.Cmd {
	gw, j, logger := m.gw, m.journal, m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		res, err := gw.DeleteBySender(ctx, address)
		if err != nil {
			return deletedResultMsg{address: address, err: err}
		}
		if jerr := j.Deleted(ctx, model.DirectionReceived, address, res); jerr != nil {
			logger.Warn("journal write failed", "error", jerr)
		}
		return deletedResultMsg{address: address, uids: res.Matched, result: res}
	}
}
