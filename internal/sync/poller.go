package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/sms-messenger/internal/journal"
	"github.com/nhle/sms-messenger/internal/messenger"
)

// SyncState represents the current state of a contact poll.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the poll state for a single gateway address.
type SyncStatus struct {
	Address  string
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a poll completes.
type SyncResultMsg struct {
	Address   string
	Messages  []messenger.InboundMessage
	NewCount  int
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when the mail server rejects the login.
type AuthErrorMsg struct {
	Message string
}

// Fetcher reads gateway replies from the mailbox.
type Fetcher interface {
	FetchMessagesByUID(ctx context.Context, from string) ([]messenger.InboundMessage, error)
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// Poller periodically fetches replies from each watched gateway address and
// journals them.
type Poller struct {
	fetcher   Fetcher
	journal   *journal.Recorder
	logger    *slog.Logger
	interval  time.Duration
	addresses []string
	statuses  map[string]*SyncStatus
	resultCh  chan SyncResultMsg
	triggers  map[string]chan struct{}
	stopCh    chan struct{}
	wg        gosync.WaitGroup
	mu        gosync.Mutex
	running   bool
}

// New creates a Poller. An interval of zero or less means two minutes.
func New(f Fetcher, j *journal.Recorder, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		fetcher:   f,
		journal:   j,
		logger:    logger,
		interval:  interval,
		statuses:  make(map[string]*SyncStatus),
		resultCh:  make(chan SyncResultMsg, 16),
		triggers:  make(map[string]chan struct{}),
		stopCh:    make(chan struct{}),
	}
}

// Watch adds a gateway address to poll. Duplicates are ignored. Addresses
// added after Start are not polled until the next Start.
func (p *Poller) Watch(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.statuses[address]; ok {
		return
	}
	p.addresses = append(p.addresses, address)
	p.statuses[address] = &SyncStatus{Address: address, State: SyncIdle}
	p.triggers[address] = make(chan struct{}, 1)
}

// Start returns a tea.Cmd that starts one polling goroutine per watched
// address and waits for the first result.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	addresses := append([]string(nil), p.addresses...)
	p.mu.Unlock()

	for _, addr := range addresses {
		p.wg.Add(1)
		go p.poll(addr, p.triggers[addr])
	}

	return p.waitForResult()
}

// Stop halts all polling goroutines and waits for them to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
}

// RefreshAll triggers an immediate poll of every watched address.
func (p *Poller) RefreshAll() {
	p.mu.Lock()
	addresses := append([]string(nil), p.addresses...)
	p.mu.Unlock()

	for _, addr := range addresses {
		p.Refresh(addr)
	}
}

// Refresh triggers an immediate poll of one address. A refresh already
// pending for the address absorbs this one.
func (p *Poller) Refresh(address string) {
	p.mu.Lock()
	trigger, ok := p.triggers[address]
	p.mu.Unlock()
	if !ok {
		return
	}

	select {
	case trigger <- struct{}{}:
	default:
	}
}

// FetchNow polls address once on the caller's goroutine and returns the
// result without publishing it.
func (p *Poller) FetchNow(ctx context.Context, address string) SyncResultMsg {
	return p.fetch(ctx, address)
}

// GetStatuses returns the current poll status of all watched addresses in
// the order they were added.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.addresses))
	for _, addr := range p.addresses {
		statuses = append(statuses, *p.statuses[addr])
	}
	return statuses
}

// poll runs the polling loop for a single address.
func (p *Poller) poll(address string, trigger <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.publish(address)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.publish(address)
		case <-trigger:
			p.publish(address)
		}
	}
}

func (p *Poller) publish(address string) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	p.sendResult(p.fetch(ctx, address))
}

// fetch performs a single fetch, journals new messages and updates the
// address status.
func (p *Poller) fetch(ctx context.Context, address string) SyncResultMsg {
	p.setStatus(address, SyncRunning, nil)

	msgs, err := p.fetcher.FetchMessagesByUID(ctx, address)
	if err != nil && len(msgs) == 0 {
		p.setStatus(address, SyncError, err)

		if messenger.IsAuthError(err) {
			return SyncResultMsg{
				Address: address,
				Error:   err,
				AuthError: &AuthErrorMsg{
					Message: "mail login rejected. Run 'smsgw login' to store a new app password.",
				},
			}
		}
		return SyncResultMsg{Address: address, Error: err}
	}
	if err != nil {
		// Some items could not be decoded; keep the rest.
		p.logger.Warn("skipped undecodable replies", "address", address, "error", err)
	}

	newCount, jerr := p.journal.Received(ctx, address, msgs)
	if jerr != nil {
		p.logger.Warn("journal write failed", "address", address, "error", jerr)
	}

	p.setStatus(address, SyncIdle, nil)
	return SyncResultMsg{
		Address:  address,
		Messages: msgs,
		NewCount: newCount,
	}
}

// setStatus updates the poll status for an address.
func (p *Poller) setStatus(address string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[address]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		p.logger.Debug("dropped poll result", "address", msg.Address)
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case result := <-p.resultCh:
			return result
		case <-p.stopCh:
			return nil
		}
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next poll result.
// Call it after handling each SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}

// Describe summarises the combined poll state for a status line.
func (p *Poller) Describe() string {
	statuses := p.GetStatuses()
	if len(statuses) == 0 {
		return "no contacts"
	}

	running, failed := 0, 0
	for _, s := range statuses {
		switch s.State {
		case SyncRunning:
			running++
		case SyncError:
			failed++
		}
	}

	switch {
	case running > 0:
		return fmt.Sprintf("checking (%d)", running)
	case failed > 0:
		return fmt.Sprintf("%d unreachable", failed)
	default:
		return "idle"
	}
}
