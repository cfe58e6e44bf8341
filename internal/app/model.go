package app

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/mattn/go-runewidth"

	"parley/internal/logging"
	"parley/internal/store"
	"parley/internal/timeline"
	"parley/internal/types"
)

const (
	defaultTickInterval  = 100 * time.Millisecond
	defaultPollInterval  = 2 * time.Second
	defaultEventsPerTick = 256
	renderCacheEntries   = 512
	renderCacheBytes     = 4 << 20
	catchUpMaxGap        = 2000
	minListWidth         = 20
	maxListWidth         = 32
	minViewportWidth     = 24
	minContentHeight     = 6
)

type focusArea int

const (
	focusSessions focusArea = iota
	focusInput
	focusTranscript
)

// Options tune the Model without threading the whole config through.
type Options struct {
	TickInterval     time.Duration
	PollInterval     time.Duration
	RenderThrottle   time.Duration
	MaxEventsPerTick int
	Limits           timeline.Limits
	Logger           logging.Logger
}

type Model struct {
	api    SessionAPI
	repo   store.Repository
	logger logging.Logger

	reducer    *timeline.Reducer
	controller *StreamController
	transcript *Transcript
	scheduler  *renderScheduler

	viewport viewport.Model
	input    *ChatInput

	sessions     []*types.Session
	sessionIdx   int
	sessionID    string
	appState     *types.AppState
	pendingPerms []string

	focus        focusArea
	follow       bool
	selectedItem int

	lastRendered int
	lastSeq      int64

	tickInterval time.Duration
	pollInterval time.Duration
	lastPoll     time.Time
	width        int
	height       int
	status       string
}

func NewModel(api SessionAPI, repo store.Repository, opts Options) *Model {
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxEventsPerTick <= 0 {
		opts.MaxEventsPerTick = defaultEventsPerTick
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	reducer := timeline.NewReducerWithLimits(opts.Limits)
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	return &Model{
		api:          api,
		repo:         repo,
		logger:       logger,
		reducer:      reducer,
		controller:   NewStreamController(reducer, opts.MaxEventsPerTick),
		transcript:   NewTranscript(reducer.OutputStore(), renderCacheEntries, renderCacheBytes),
		scheduler:    newRenderScheduler(opts.RenderThrottle),
		viewport:     vp,
		input:        NewChatInput(80),
		appState:     &types.AppState{},
		follow:       true,
		selectedItem: -1,
		lastRendered: -1,
		tickInterval: opts.TickInterval,
		pollInterval: opts.PollInterval,
		lastPoll:     time.Now(),
		status:       "loading sessions",
	}
}

func Run(api SessionAPI, repo store.Repository, opts Options) error {
	model := NewModel(api, repo, opts)
	p := tea.NewProgram(model)

	// SIGUSR1 from the host asks the UI to shed memory without dying.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			p.Send(memoryWarningMsg{})
		}
	}()

	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(fetchSessionsCmd(m.api), loadAppStateCmd(m.repo), tickCmd(m.tickInterval))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.BackgroundColorMsg:
		if setMarkdownBackgroundDark(msg.IsDark()) {
			m.refreshViewport(true)
		}
		return m, nil
	case tickMsg:
		cmds := []tea.Cmd{m.consumeStreamTick(), tickCmd(m.tickInterval)}
		if time.Since(m.lastPoll) >= m.pollInterval {
			m.lastPoll = time.Now()
			cmds = append(cmds, fetchSessionsCmd(m.api))
		}
		return m, tea.Batch(cmds...)
	case tea.KeyPressMsg:
		return m.updateKey(msg)
	case memoryWarningMsg:
		report := m.reducer.HandleMemoryWarning()
		m.logger.Warn("memory relief",
			logging.F("bytes_freed", report.OutputBytesFreed),
			logging.F("items_collapsed", report.ItemsCollapsed),
			logging.F("images_stripped", report.ImagesStripped))
		m.status = fmt.Sprintf("memory relief: %d bytes freed", report.OutputBytesFreed)
		m.refreshViewport(true)
		return m, nil
	case sessionsMsg:
		if msg.err != nil {
			m.status = "sessions error: " + msg.err.Error()
			return m, nil
		}
		m.sessions = msg.sessions
		m.clampSessionIdx()
		m.status = fmt.Sprintf("%d sessions", len(m.sessions))
		if m.sessionID == "" && m.appState.SelectedSessionID != "" {
			if idx := m.sessionIndexByID(m.appState.SelectedSessionID); idx >= 0 {
				m.sessionIdx = idx
				return m, m.openSession(m.appState.SelectedSessionID)
			}
		}
		return m, m.reconcileOpenSession()
	case appStateMsg:
		if msg.err != nil {
			m.status = "state error: " + msg.err.Error()
			return m, nil
		}
		if msg.state != nil {
			m.appState = msg.state
		}
		return m, nil
	case cachedTraceMsg:
		return m.updateCachedTrace(msg)
	case traceMsg:
		return m.updateTrace(msg)
	case streamMsg:
		if msg.sessionID != m.sessionID {
			if msg.cancel != nil {
				msg.cancel()
			}
			return m, nil
		}
		if msg.err != nil {
			m.status = "stream error: " + msg.err.Error()
			return m, nil
		}
		m.controller.SetStream(msg.events, msg.cancel)
		m.status = "live"
		return m, nil
	case catchUpMsg:
		if msg.sessionID != m.sessionID {
			return m, nil
		}
		if msg.err != nil {
			m.status = "catch-up error: " + msg.err.Error()
			return m, nil
		}
		if events := FilterCatchUp(msg.events, msg.afterSeq); len(events) > 0 {
			m.reducer.ProcessBatch(events)
			m.refreshViewport(false)
		}
		// Advance past everything the fetch covered, applied or filtered,
		// so the next sessions poll does not replay the same span.
		if seq := MaxEventSeq(msg.events); seq > m.lastSeq {
			m.lastSeq = seq
		}
		return m, nil
	case sendResultMsg:
		if msg.err != nil {
			m.status = "send error: " + msg.err.Error()
			return m, nil
		}
		m.status = "message sent"
		return m, nil
	case interruptMsg:
		if msg.err != nil {
			m.status = "interrupt error: " + msg.err.Error()
			return m, nil
		}
		m.status = "interrupt sent"
		return m, nil
	case permissionResolvedMsg:
		if msg.err != nil {
			m.status = "permission error: " + msg.err.Error()
			return m, nil
		}
		m.reducer.ResolvePermission(msg.permissionID, msg.outcome)
		m.dropPendingPermission(msg.permissionID)
		m.refreshViewport(false)
		return m, nil
	case traceCachedMsg:
		if msg.err != nil {
			m.logger.Warn("trace cache write failed", logging.F("session", msg.sessionID), logging.F("err", msg.err))
		}
		return m, nil
	case stateSavedMsg:
		if msg.err != nil {
			m.logger.Warn("state save failed", logging.F("err", msg.err))
		}
		return m, nil
	}

	if m.focus == focusTranscript {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd
	}
	return m, nil
}

func (m *Model) updateKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.Mod == tea.ModCtrl && msg.Code == 'c' {
		return m, tea.Batch(saveAppStateCmd(m.repo, m.snapshotAppState()), tea.Quit)
	}
	if msg.Code == tea.KeyTab {
		m.cycleFocus()
		return m, nil
	}

	if m.focus == focusInput {
		if msg.Code == tea.KeyEnter {
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.sessionID == "" {
				return m, nil
			}
			m.input.Clear()
			m.status = "sending"
			return m, sendMessageCmd(m.api, m.sessionID, text)
		}
		if msg.Code == tea.KeyEscape {
			m.input.Blur()
			m.focus = focusTranscript
			return m, nil
		}
		return m, m.input.Update(msg)
	}

	switch msg.Code {
	case 'q':
		return m, tea.Batch(saveAppStateCmd(m.repo, m.snapshotAppState()), tea.Quit)
	case 'r':
		m.status = "refreshing sessions"
		return m, fetchSessionsCmd(m.api)
	case 'i':
		if m.sessionID != "" {
			return m, interruptCmd(m.api, m.sessionID)
		}
		return m, nil
	case 'y', 'n':
		if id := m.firstPendingPermission(); id != "" && m.sessionID != "" {
			outcome := "allowed"
			if msg.Code == 'n' {
				outcome = "denied"
			}
			return m, resolvePermissionCmd(m.api, m.sessionID, id, outcome)
		}
		return m, nil
	case 'M':
		report := m.reducer.HandleMemoryWarning()
		m.status = fmt.Sprintf("memory relief: %d bytes freed", report.OutputBytesFreed)
		m.refreshViewport(true)
		return m, nil
	}

	if m.focus == focusSessions {
		switch msg.Code {
		case tea.KeyUp, 'k':
			if m.sessionIdx > 0 {
				m.sessionIdx--
			}
			return m, nil
		case tea.KeyDown, 'j':
			if m.sessionIdx < len(m.sessions)-1 {
				m.sessionIdx++
			}
			return m, nil
		case tea.KeyEnter:
			if session := m.sessionAt(m.sessionIdx); session != nil {
				return m, m.openSession(session.ID)
			}
			return m, nil
		}
		return m, nil
	}

	switch msg.Code {
	case 'k':
		m.moveItemSelection(-1)
		return m, nil
	case 'j':
		m.moveItemSelection(1)
		return m, nil
	case 'e':
		if item := m.selectedChatItem(); item != nil {
			m.reducer.ToggleExpanded(item.ID)
			m.refreshViewport(false)
		}
		return m, nil
	case 'c':
		if item := m.selectedChatItem(); item != nil {
			m.copyItem(*item)
		}
		return m, nil
	case tea.KeyEscape:
		m.focus = focusSessions
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.follow = m.viewport.AtBottom()
	return m, cmd
}

func (m *Model) updateCachedTrace(msg cachedTraceMsg) (tea.Model, tea.Cmd) {
	if msg.sessionID != m.sessionID {
		return m, nil
	}
	if msg.err != nil {
		m.logger.Warn("trace cache read failed", logging.F("session", msg.sessionID), logging.F("err", msg.err))
		return m, nil
	}
	if m.lastSeq > 0 {
		// The fresh trace won the race; the cached copy is stale.
		return m, nil
	}
	if msg.found && len(msg.events) > 0 {
		m.reducer.LoadSession(msg.events)
		m.lastSeq = msg.lastSeq
		m.refreshViewport(true)
		m.status = "cached history"
	}
	return m, nil
}

func (m *Model) updateTrace(msg traceMsg) (tea.Model, tea.Cmd) {
	if msg.sessionID != m.sessionID {
		return m, nil
	}
	if msg.err != nil {
		m.status = "trace error: " + msg.err.Error()
		return m, nil
	}
	if msg.trace == nil {
		return m, nil
	}
	m.reducer.LoadSession(msg.trace.Events)
	m.lastSeq = msg.trace.LastSeq
	m.restoreExpansion()
	m.refreshViewport(true)
	m.status = "history loaded"
	cmds := []tea.Cmd{
		saveTraceCmd(m.repo, msg.sessionID, msg.trace.Events, msg.trace.LastSeq),
		catchUpCmd(m.api, msg.sessionID, msg.trace.LastSeq),
	}
	if !m.controller.HasStream() {
		cmds = append(cmds, openStreamCmd(m.api, msg.sessionID))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) View() tea.View {
	view := tea.NewView(m.viewContent())
	view.AltScreen = true
	return view
}

func (m *Model) viewContent() string {
	if m.width <= 0 || m.height <= 0 {
		return "loading..."
	}
	listWidth := m.listWidth()
	list := m.renderSessionList(listWidth)
	content := m.viewport.View()
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, content)
	inputLine := m.input.View()
	status := m.status
	if m.reducer.StreamingAssistantID() != "" {
		status = "streaming  " + status
	}
	statusLine := statusStyle.Render(runewidth.Truncate(status, m.width, "…"))
	if m.reducer.StreamingAssistantID() != "" && m.width > 2 {
		statusLine = streamCursorStyle.Render("▍") + " " + statusStyle.Render(runewidth.Truncate(status, m.width-2, "…"))
	}
	hints := helpStyle.Render("tab focus · enter open/send · e expand · c copy · y/n permission · i interrupt · q quit")
	return strings.Join([]string{body, inputLine, statusLine, hints}, "\n")
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	contentHeight := max(minContentHeight, height-3)
	viewportWidth := max(minViewportWidth, width-m.listWidth())
	m.viewport.SetWidth(viewportWidth)
	m.viewport.SetHeight(contentHeight)
	m.input.Resize(width)
	m.refreshViewport(true)
}

func (m *Model) listWidth() int {
	w := m.width / 4
	if w < minListWidth {
		w = minListWidth
	}
	if w > maxListWidth {
		w = maxListWidth
	}
	return w
}

func (m *Model) renderSessionList(width int) string {
	lines := make([]string, 0, len(m.sessions)+2)
	lines = append(lines, headerStyle.Render("Sessions"))
	for i, session := range m.sessions {
		title := session.Title
		if strings.TrimSpace(title) == "" {
			title = session.ID
		}
		marker := "  "
		if i == m.sessionIdx {
			marker = "> "
		}
		if session.ID == m.sessionID {
			title = "* " + title
		}
		line := runewidth.Truncate(marker+title, width, "…")
		if i == m.sessionIdx && m.focus == focusSessions {
			line = headerStyle.Render(line)
		}
		lines = append(lines, line)
	}
	block := strings.Join(lines, "\n")
	return lipgloss.NewStyle().Width(width).Render(block)
}

// reconcileOpenSession compares the server's sequence number for the
// open session against what the timeline has seen. A small gap is
// bridged with a catch-up fetch; a rewind or a large gap means the
// history must be refetched wholesale.
func (m *Model) reconcileOpenSession() tea.Cmd {
	if m.sessionID == "" {
		return nil
	}
	idx := m.sessionIndexByID(m.sessionID)
	if idx < 0 {
		return nil
	}
	session := m.sessions[idx]
	if session.LastSeq <= 0 || session.LastSeq == m.lastSeq {
		return nil
	}
	if ShouldRefetchTrace(m.lastSeq, session.LastSeq, catchUpMaxGap) {
		return fetchTraceCmd(m.api, m.sessionID)
	}
	if session.LastSeq > m.lastSeq {
		return catchUpCmd(m.api, m.sessionID, m.lastSeq)
	}
	return nil
}

// consumeStreamTick drains the live channel and refreshes the viewport
// only when the reducer's render version actually moved.
func (m *Model) consumeStreamTick() tea.Cmd {
	changed, closed := m.controller.ConsumeTick()
	if seq := m.controller.LastSeq(); seq > m.lastSeq {
		m.lastSeq = seq
	}
	now := time.Now()
	if changed {
		m.trackPendingPermissions()
		if m.scheduler.Request(now) {
			m.refreshViewport(false)
		}
	} else if m.scheduler.Due(now) {
		m.refreshViewport(false)
	}
	if closed {
		m.status = "stream closed"
		if m.sessionID != "" {
			// Recover by refetching history and reopening the stream.
			return fetchTraceCmd(m.api, m.sessionID)
		}
	}
	return nil
}

func (m *Model) refreshViewport(force bool) {
	version := m.reducer.RenderVersion()
	if !force && version == m.lastRendered {
		return
	}
	m.lastRendered = version
	width := m.viewport.Width()
	content := m.transcript.Render(m.reducer.Items(), width, m.reducer.IsExpanded)
	m.viewport.SetContent(content)
	m.scheduler.MarkRendered(time.Now())
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) openSession(sessionID string) tea.Cmd {
	if sessionID == "" {
		return nil
	}
	m.controller.Reset()
	m.sessionID = sessionID
	m.appState.SelectedSessionID = sessionID
	m.lastSeq = 0
	m.selectedItem = -1
	m.pendingPerms = nil
	m.follow = true
	m.focus = focusInput
	m.input.Focus()
	m.status = "loading " + sessionID
	m.refreshViewport(true)
	return tea.Batch(
		loadCachedTraceCmd(m.repo, sessionID),
		fetchTraceCmd(m.api, sessionID),
		saveAppStateCmd(m.repo, m.snapshotAppState()),
	)
}

func (m *Model) cycleFocus() {
	switch m.focus {
	case focusSessions:
		m.focus = focusInput
		m.input.Focus()
	case focusInput:
		m.input.Blur()
		m.focus = focusTranscript
	default:
		m.focus = focusSessions
	}
}

func (m *Model) sessionAt(idx int) *types.Session {
	if idx < 0 || idx >= len(m.sessions) {
		return nil
	}
	return m.sessions[idx]
}

func (m *Model) sessionIndexByID(id string) int {
	for i, session := range m.sessions {
		if session != nil && session.ID == id {
			return i
		}
	}
	return -1
}

func (m *Model) clampSessionIdx() {
	if m.sessionIdx >= len(m.sessions) {
		m.sessionIdx = len(m.sessions) - 1
	}
	if m.sessionIdx < 0 {
		m.sessionIdx = 0
	}
}

func (m *Model) moveItemSelection(delta int) {
	items := m.reducer.Items()
	if len(items) == 0 {
		return
	}
	idx := m.selectedItem
	if idx < 0 {
		idx = len(items) - 1
	} else {
		idx += delta
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(items) {
		idx = len(items) - 1
	}
	m.selectedItem = idx
	m.status = fmt.Sprintf("item %d/%d", idx+1, len(items))
}

func (m *Model) selectedChatItem() *timeline.ChatItem {
	items := m.reducer.Items()
	if m.selectedItem < 0 || m.selectedItem >= len(items) {
		return nil
	}
	item := items[m.selectedItem]
	return &item
}

func (m *Model) copyItem(item timeline.ChatItem) {
	text := item.Text
	switch item.Kind {
	case timeline.ItemToolCall:
		if full := m.reducer.OutputStore().FullOutput(item.ID); full != "" {
			text = full
		} else {
			text = item.OutputPreview
		}
	case timeline.ItemThinking:
		text = item.Preview
	}
	if strings.TrimSpace(text) == "" {
		m.status = "nothing to copy"
		return
	}
	if _, err := copyTextToClipboard(text); err != nil {
		m.status = "copy failed: " + err.Error()
		return
	}
	m.status = "copied"
}

// trackPendingPermissions keeps the y/n shortcut pointed at the oldest
// unresolved permission row.
func (m *Model) trackPendingPermissions() {
	var pending []string
	for _, item := range m.reducer.Items() {
		if item.Kind == timeline.ItemPermission {
			pending = append(pending, item.ID)
		}
	}
	m.pendingPerms = pending
}

func (m *Model) firstPendingPermission() string {
	if len(m.pendingPerms) == 0 {
		return ""
	}
	return m.pendingPerms[0]
}

func (m *Model) dropPendingPermission(id string) {
	next := m.pendingPerms[:0]
	for _, pending := range m.pendingPerms {
		if pending != id {
			next = append(next, pending)
		}
	}
	m.pendingPerms = next
}

func (m *Model) restoreExpansion() {
	for _, id := range m.appState.ExpandedFor(m.sessionID) {
		if !m.reducer.IsExpanded(id) {
			m.reducer.ToggleExpanded(id)
		}
	}
}

func (m *Model) snapshotAppState() *types.AppState {
	if m.sessionID != "" {
		var expanded []string
		for _, item := range m.reducer.Items() {
			if m.reducer.IsExpanded(item.ID) {
				expanded = append(expanded, item.ID)
			}
		}
		m.appState.SetExpandedFor(m.sessionID, expanded)
	}
	return m.appState
}
