// Package ui is a terminal renderer for the window engine. It draws only
// the rows inside the engine's viewport and answers the engine's load
// requests with pages from a datasource.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/wintree/internal/datasource"
	"github.com/vanderheijden86/wintree/pkg/config"
	"github.com/vanderheijden86/wintree/pkg/debug"
	"github.com/vanderheijden86/wintree/pkg/model"
	"github.com/vanderheijden86/wintree/pkg/order"
	"github.com/vanderheijden86/wintree/pkg/viewport"
	"github.com/vanderheijden86/wintree/pkg/watcher"
	"github.com/vanderheijden86/wintree/pkg/window"
)

// Lines used by the header, status line and help line.
const chromeLines = 3

// wheelStep is the number of rows one mouse wheel notch scrolls.
const wheelStep = 3

// sortPresets are offered by the sort key after the configured criteria.
var sortPresets = []string{
	"priority:desc,updated:desc",
	"title:asc",
	"created:asc",
	"status:asc,priority:desc",
	"updated:desc",
}

// sourceOpenedMsg carries the first page and total of the source.
type sourceOpenedMsg struct {
	first datasource.Initial
	err   error
}

// batchLoadedMsg carries one page requested by the engine.
type batchLoadedMsg struct {
	offset int
	items  []model.Item
	err    error
}

// ItemsReloadedMsg replaces every item after the source changed.
type ItemsReloadedMsg struct {
	Items []model.Item
}

// ReloadErrorMsg reports a failed reload.
type ReloadErrorMsg struct {
	Err error
}

// watchMsg wraps a message from the file watcher so Update can re-arm
// the wait.
type watchMsg struct {
	inner tea.Msg
}

// signals collects engine callbacks between Update calls.
type signals struct {
	loadRequested bool
}

// Option configures a Model.
type Option func(*settings)

type settings struct {
	now       func() time.Time
	clipboard func(string) error
	renderer  *lipgloss.Renderer
}

// WithClock sets the time source used for scroll timestamps and ages.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(fn func(string) error) Option {
	return func(s *settings) { s.clipboard = fn }
}

// WithRenderer sets the lipgloss renderer (tests use one without color).
func WithRenderer(r *lipgloss.Renderer) Option {
	return func(s *settings) { s.renderer = r }
}

// Model is the bubbletea model for the tree view.
type Model struct {
	cfg    config.Config
	engine *window.Engine
	frames *frameScheduler
	pager  *datasource.Pager
	sig    *signals

	watch *watcher.Watcher

	keys  KeyMap
	help  help.Model
	theme Theme

	width, height int
	cursor        int
	top           int

	sorts   []string
	sortIdx int

	ready     bool
	status    string
	statusErr bool

	now       func() time.Time
	clipboard func(string) error
}

// NewModel creates a model that reads items through pager.
func NewModel(cfg config.Config, pager *datasource.Pager, opts ...Option) Model {
	s := settings{now: time.Now, clipboard: clipboard.WriteAll}
	for _, opt := range opts {
		opt(&s)
	}
	if s.renderer == nil {
		s.renderer = lipgloss.DefaultRenderer()
	}

	frames := newFrameScheduler(cfg.Scroll.FrameInterval)
	engine := window.New(cfg,
		window.WithScheduler(frames),
		window.WithClock(s.now),
	)
	cfg = engine.Config()

	sig := &signals{}
	engine.OnLoadRequest(func() { sig.loadRequested = true })
	engine.OnViewport(func(vp viewport.Viewport, visible []model.Row) {
		debug.Log("ui: window [%d,%d], %d rows materialized", vp.StartIndex, vp.EndIndex, len(visible))
	})

	sorts := []string{cfg.Sort.Criteria}
	for _, p := range sortPresets {
		if p != cfg.Sort.Criteria {
			sorts = append(sorts, p)
		}
	}

	return Model{
		cfg:       cfg,
		engine:    engine,
		frames:    frames,
		pager:     pager,
		sig:       sig,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		theme:     DefaultTheme(s.renderer),
		sorts:     sorts,
		now:       s.now,
		clipboard: s.clipboard,
		width:     80,
		height:    24,
	}
}

// WithWatch reloads every item whenever path changes.
func (m Model) WithWatch(path string, opts ...watcher.Option) (Model, error) {
	pager := m.pager
	w, err := watcher.New(path, func(ctx context.Context) ([]model.Item, error) {
		return loadAll(ctx, pager)
	}, opts...)
	if err != nil {
		return m, err
	}
	if err := w.Start(); err != nil {
		return m, fmt.Errorf("watching %s: %w", path, err)
	}
	m.watch = w
	return m, nil
}

// Engine returns the window engine.
func (m Model) Engine() *window.Engine {
	return m.engine
}

// Init opens the source.
func (m Model) Init() tea.Cmd {
	open := openSourceCmd(m.pager)
	if m.watch == nil {
		return open
	}
	return tea.Batch(open, waitForWatchCmd(m.watch.Events()))
}

func openSourceCmd(p *datasource.Pager) tea.Cmd {
	return func() tea.Msg {
		first, err := p.OpenPaged(context.Background())
		return sourceOpenedMsg{first: first, err: err}
	}
}

func fetchBatchCmd(p *datasource.Pager, offset, limit int) tea.Cmd {
	return func() tea.Msg {
		items, err := p.Page(context.Background(), offset, limit)
		return batchLoadedMsg{offset: offset, items: items, err: err}
	}
}

func reloadCmd(p *datasource.Pager) tea.Cmd {
	return func() tea.Msg {
		items, err := loadAll(context.Background(), p)
		if err != nil {
			return ReloadErrorMsg{Err: err}
		}
		return ItemsReloadedMsg{Items: items}
	}
}

// waitForWatchCmd waits for the next reload from the watcher. It yields
// nothing once the watcher has stopped.
func waitForWatchCmd(ch <-chan watcher.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		if ev.Err != nil {
			return watchMsg{inner: ReloadErrorMsg{Err: ev.Err}}
		}
		return watchMsg{inner: ItemsReloadedMsg{Items: ev.Items}}
	}
}

type reloadable interface {
	Reload(ctx context.Context) (int, error)
}

// loadAll re-reads the source and returns every item.
func loadAll(ctx context.Context, p *datasource.Pager) ([]model.Item, error) {
	if r, ok := p.Source().(reloadable); ok {
		if _, err := r.Reload(ctx); err != nil {
			return nil, err
		}
	}
	return p.All(ctx, 4)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.engine.Resize(float64(m.listHeight()) * m.cfg.Viewport.RowHeight)
		m.ensureVisible(true)

	case sourceOpenedMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("opening source: %w", msg.err))
			break
		}
		m.engine.ResetLoad(msg.first.Total)
		m.engine.BeginLoad()
		m.engine.AppendItems(msg.first.Items)
		m.engine.ExpandToLevel(m.cfg.UI.ExpandLevel)
		m.ready = true
		m.setStatus(fmt.Sprintf("loaded %d of %d", len(msg.first.Items), msg.first.Total))

	case batchLoadedMsg:
		m = m.handleBatch(msg)

	case ItemsReloadedMsg:
		m = m.replaceAll(msg.Items)
		m.setStatus(fmt.Sprintf("reloaded %d items", len(msg.Items)))

	case ReloadErrorMsg:
		m.setError(fmt.Errorf("reload: %w", msg.Err))

	case watchMsg:
		updated, cmd := m.Update(msg.inner)
		m = updated.(Model)
		cmds = append(cmds, cmd)
		if m.watch != nil {
			cmds = append(cmds, waitForWatchCmd(m.watch.Events()))
		}

	case frameMsg:
		m.frames.fire(msg.token)

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			break
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.scrollBy(-wheelStep)
		case tea.MouseButtonWheelDown:
			m.scrollBy(wheelStep)
		}

	case tea.KeyMsg:
		var cmd tea.Cmd
		m, cmd = m.handleKeys(msg)
		cmds = append(cmds, cmd)
	}

	if m.sig.loadRequested {
		m.sig.loadRequested = false
		offset, limit := m.engine.NextBatch()
		if limit > 0 {
			cmds = append(cmds, fetchBatchCmd(m.pager, offset, limit))
		} else {
			m.engine.AbortLoad()
		}
	}
	cmds = append(cmds, m.frames.drain())
	return m, tea.Batch(cmds...)
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.engine.Stop()
		if m.watch != nil {
			m.watch.Stop()
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-m.listHeight())
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(m.listHeight())
	case key.Matches(msg, m.keys.Top):
		m.cursor = 0
		m.ensureVisible(true)
	case key.Matches(msg, m.keys.Bottom):
		m.moveCursor(len(m.engine.Rows()))
	case key.Matches(msg, m.keys.Toggle):
		if row, ok := m.selected(); ok {
			m.engine.Toggle(row.ID)
			m.keepSelection(row.ID)
		}
	case key.Matches(msg, m.keys.ExpandAll):
		m.restructure(m.engine.ExpandAll)
	case key.Matches(msg, m.keys.CollapseAll):
		m.restructure(m.engine.CollapseAll)
	case key.Matches(msg, m.keys.Level):
		level := int(msg.String()[0] - '0')
		m.restructure(func() { m.engine.ExpandToLevel(level - 1) })
	case key.Matches(msg, m.keys.Sort):
		m.sortIdx = (m.sortIdx + 1) % len(m.sorts)
		criteria, err := order.ParseCriteria(m.sorts[m.sortIdx])
		if err != nil {
			m.setError(err)
			break
		}
		m.restructure(func() { m.engine.SetCriteria(criteria) })
		m.setStatus("sort: " + m.sorts[m.sortIdx])
	case key.Matches(msg, m.keys.Copy):
		row, ok := m.selected()
		if !ok {
			break
		}
		if err := m.clipboard(row.ID); err != nil {
			m.setError(fmt.Errorf("copy: %w", err))
		} else {
			m.setStatus("copied " + row.ID)
		}
	case key.Matches(msg, m.keys.Reload):
		m.setStatus("reloading…")
		if m.watch != nil {
			m.watch.Reload()
			return m, nil
		}
		return m, reloadCmd(m.pager)
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.engine.Resize(float64(m.listHeight()) * m.cfg.Viewport.RowHeight)
	}
	return m, nil
}

func (m Model) handleBatch(msg batchLoadedMsg) Model {
	if msg.err != nil {
		m.engine.AbortLoad()
		m.setError(msg.err)
		return m
	}
	st := m.engine.LoadState()
	if !st.IsLoadInFlight || msg.offset != st.LoadedCount {
		debug.Log("ui: dropping stale batch at %d (loaded %d)", msg.offset, st.LoadedCount)
		return m
	}
	id := ""
	if row, ok := m.selected(); ok {
		id = row.ID
	}
	added := m.engine.AppendItems(msg.items)
	if id != "" {
		m.keepSelection(id)
	}
	m.setStatus(fmt.Sprintf("loaded %d more", added))
	return m
}

// replaceAll swaps in a complete item set and marks loading finished.
func (m Model) replaceAll(items []model.Item) Model {
	id := ""
	if row, ok := m.selected(); ok {
		id = row.ID
	}
	m.engine.ReplaceItems(items)
	if !m.ready {
		m.engine.ExpandToLevel(m.cfg.UI.ExpandLevel)
		m.ready = true
	}
	m.keepSelection(id)
	return m
}

// restructure runs a change that reshapes the rows and keeps the
// selected item under the cursor when it is still shown.
func (m *Model) restructure(change func()) {
	id := ""
	if row, ok := m.selected(); ok {
		id = row.ID
	}
	change()
	m.keepSelection(id)
}

func (m *Model) keepSelection(id string) {
	if i := m.engine.IndexOf(id); i >= 0 {
		m.cursor = i
	}
	m.ensureVisible(false)
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	m.ensureVisible(false)
	if delta > 0 {
		m.loadAtEnd()
	}
}

// loadAtEnd asks for the next batch when the cursor reaches the last
// row. Short lists never scroll, so the engine alone would not ask.
func (m *Model) loadAtEnd() {
	if m.cursor < len(m.engine.Rows())-1 {
		return
	}
	if m.engine.BeginLoad() {
		m.sig.loadRequested = true
	}
}

// scrollBy moves the view without moving the selection, unless the
// selection would leave the screen.
func (m *Model) scrollBy(delta int) {
	n := len(m.engine.Rows())
	h := m.listHeight()
	top := min(max(m.top+delta, 0), max(n-h, 0))
	if top == m.top {
		return
	}
	m.top = top
	m.cursor = min(max(m.cursor, top), top+h-1)
	m.cursor = min(m.cursor, max(n-1, 0))
	m.engine.Scroll(float64(m.top)*m.cfg.Viewport.RowHeight, m.now())
}

// ensureVisible clamps the cursor and scrolls it into view. jump skips
// scroll coalescing and moves the window immediately.
func (m *Model) ensureVisible(jump bool) {
	n := len(m.engine.Rows())
	h := m.listHeight()
	m.cursor = min(max(m.cursor, 0), max(n-1, 0))

	top := m.top
	if m.cursor < top {
		top = m.cursor
	}
	if m.cursor >= top+h {
		top = m.cursor - h + 1
	}
	top = min(max(top, 0), max(n-h, 0))

	if top == m.top && !jump {
		return
	}
	m.top = top
	pos := float64(m.top) * m.cfg.Viewport.RowHeight
	if jump {
		m.engine.ScrollTo(pos)
		return
	}
	m.engine.Scroll(pos, m.now())
}

func (m Model) selected() (model.Row, bool) {
	rows := m.engine.Rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return model.Row{}, false
	}
	return rows[m.cursor], true
}

// listHeight is the number of row lines on screen.
func (m Model) listHeight() int {
	h := m.height - chromeLines
	if m.help.ShowAll {
		h -= len(m.keys.FullHelp()[0]) - 1
	}
	return max(h, 1)
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *Model) setError(err error) {
	debug.Log("ui: %v", err)
	m.status, m.statusErr = err.Error(), true
}

// Cursor returns the selected row index.
func (m Model) Cursor() int { return m.cursor }

// Top returns the first row index on screen.
func (m Model) Top() int { return m.top }

// Status returns the status message and whether it is an error.
func (m Model) Status() (string, bool) { return m.status, m.statusErr }
