// Package app is the kmon terminal UI.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	btable "github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
	"github.com/HaPhanBaoMinh/kmon/internal/poll"
	"github.com/HaPhanBaoMinh/kmon/internal/registry"
	"github.com/HaPhanBaoMinh/kmon/internal/summary"
	"github.com/HaPhanBaoMinh/kmon/internal/table"
	"github.com/HaPhanBaoMinh/kmon/internal/ui/styles"
)

var perPageChoices = []int{10, 20, 50, 100}

type mode int

const (
	modeTable mode = iota
	modeFilter
	modeDetails
)

type Options struct {
	Interval time.Duration
	Window   int
	PerPage  int
	Clock    clock.WithTicker
	Observer table.FetchObserver
	Logger   *zap.Logger
}

// feed is one polled controller. The scheduler only signals; fetches run as
// tea commands and are applied on the update loop.
type feed struct {
	ctrl  *table.Controller
	sched *poll.Scheduler
	polls chan struct{}
}

func (f *feed) stop() {
	f.sched.Stop()
	f.ctrl.Close()
	close(f.polls)
}

type pollMsg struct{ f *feed }

type feedClosedMsg struct{}

type fetchedMsg struct {
	ctrl *table.Controller
	res  table.Result
}

func waitForPoll(f *feed) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-f.polls; !ok {
			return feedClosedMsg{}
		}
		return pollMsg{f}
	}
}

func fetch(ctx context.Context, ctrl *table.Controller, req table.Request) tea.Cmd {
	return func() tea.Msg {
		return fetchedMsg{ctrl: ctrl, res: ctrl.Fetch(ctx, req)}
	}
}

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	reg  *registry.Registry
	opts Options
	log  *zap.Logger

	entity domain.Entity
	main   *feed
	side   *feed
	card   *summary.Card

	// history holds the table states left by drill-down, newest last
	history []domain.ViewState
	detail  details

	mode      mode
	filterCol int
	table     btable.Model
	input     textinput.Model
	detailsVP viewport.Model
	help      help.Model

	width, height int
	err           error
}

// New mounts the initial entity and starts polling it.
func New(reg *registry.Registry, entity string, opts Options) (Model, error) {
	if opts.Interval <= 0 {
		opts.Interval = poll.DefaultInterval
	}
	if opts.PerPage <= 0 {
		opts.PerPage = domain.DefaultPerPage
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if entity == "" {
		names := reg.Names()
		if len(names) == 0 {
			return Model{}, errors.New("no entities registered")
		}
		entity = names[0]
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := btable.New(btable.WithFocused(true), btable.WithHeight(12), btable.WithWidth(100))
	t.SetStyles(styles.Table())
	in := textinput.New()
	in.Prompt = "/ "
	in.Placeholder = "substring"

	m := Model{
		ctx:       ctx,
		cancel:    cancel,
		reg:       reg,
		opts:      opts,
		log:       opts.Logger.Named("tui"),
		table:     t,
		input:     in,
		detailsVP: viewport.New(100, 20),
		help:      help.New(),
	}
	st := domain.DefaultViewState(entity)
	st.PerPage = opts.PerPage
	if err := m.mount(st); err != nil {
		cancel()
		return Model{}, err
	}
	return m, nil
}

// mount builds a fresh controller, and a card when the entity has one, from
// st and starts their pollers.
func (m *Model) mount(st domain.ViewState) error {
	e, err := m.reg.Lookup(st.Entity)
	if err != nil {
		return err
	}
	topts := table.Options{
		Window:   m.opts.Window,
		Clock:    m.opts.Clock,
		State:    st,
		Observer: m.opts.Observer,
		Logger:   m.opts.Logger,
	}
	ctrl, err := table.New(e, topts)
	if err != nil {
		return err
	}
	m.entity = e
	m.main = m.startFeed(ctrl)
	m.card, m.side = nil, nil
	if e.Top != nil {
		card, err := summary.New(e, topts)
		if err != nil {
			m.log.Warn("summary card disabled", zap.String("entity", e.Name), zap.Error(err))
		} else {
			m.card = card
			m.side = m.startFeed(card.Controller())
		}
	}
	m.filterCol = m.defaultFilterCol()
	if f := ctrl.State().Filter; f.Field != "" {
		if col, ok := e.Column(f.Field); ok {
			m.filterCol = col
		}
	}
	m.input.SetValue(ctrl.State().Filter.Value)
	m.table.SetRows(nil)
	m.rebuildTable()
	m.table.SetCursor(0)
	return nil
}

func (m *Model) startFeed(ctrl *table.Controller) *feed {
	f := &feed{ctrl: ctrl, polls: make(chan struct{}, 1)}
	f.sched = poll.New(m.opts.Interval, func(context.Context) {
		select {
		case f.polls <- struct{}{}:
		default:
		}
	}, poll.WithClock(m.opts.Clock), poll.WithLogger(m.log))
	f.sched.Start(m.ctx)
	return f
}

// unmount stops polling and closes the controllers. Fetches still in flight
// complete against closed controllers and are dropped.
func (m *Model) unmount() {
	if m.main != nil {
		m.main.stop()
		m.main = nil
	}
	if m.side != nil {
		m.side.stop()
		m.side = nil
	}
	m.card = nil
}

func (m *Model) waitCmds() tea.Cmd {
	cmds := []tea.Cmd{}
	if m.main != nil {
		cmds = append(cmds, waitForPoll(m.main))
	}
	if m.side != nil {
		cmds = append(cmds, waitForPoll(m.side))
	}
	return tea.Batch(cmds...)
}

func (m *Model) switchTo(st domain.ViewState) tea.Cmd {
	m.unmount()
	if err := m.mount(st); err != nil {
		m.err = err
		return nil
	}
	return m.waitCmds()
}

func (m Model) Init() tea.Cmd {
	return m.waitCmds()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.rebuildTable()
		return m, nil

	case pollMsg:
		if msg.f != m.main && msg.f != m.side {
			return m, nil
		}
		ctrl := msg.f.ctrl
		return m, tea.Batch(fetch(m.ctx, ctrl, ctrl.Refresh()), waitForPoll(msg.f))

	case feedClosedMsg:
		return m, nil

	case fetchedMsg:
		if msg.ctrl.Apply(msg.res) && m.main != nil && msg.ctrl == m.main.ctrl {
			m.rebuildTable()
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeFilter:
			return m.updateFilter(msg)
		case modeDetails:
			return m.updateDetails(msg)
		}
		return m.updateTable(msg)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.main == nil {
		if key.Matches(msg, keys.Quit) {
			m.shutdown()
			return m, tea.Quit
		}
		return m, nil
	}
	ctrl := m.main.ctrl
	st := ctrl.State()

	switch {
	case key.Matches(msg, keys.Quit):
		m.shutdown()
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil

	case key.Matches(msg, keys.NextEntity), key.Matches(msg, keys.PrevEntity):
		step := 1
		if key.Matches(msg, keys.PrevEntity) {
			step = -1
		}
		names := m.reg.Names()
		next := names[(indexOf(names, m.entity.Name)+step+len(names))%len(names)]
		m.history = nil
		ns := domain.DefaultViewState(next)
		ns.PerPage = st.PerPage
		return m, m.switchTo(ns)

	case key.Matches(msg, keys.Refresh):
		return m, fetch(m.ctx, ctrl, ctrl.Refresh())

	case key.Matches(msg, keys.Sort):
		col := m.nextSortable(st.Sort.Column)
		if err := ctrl.SetSort(col, domain.Ascending); err != nil {
			m.err = err
		}
		m.rebuildTable()
		return m, nil

	case key.Matches(msg, keys.Reverse):
		if err := ctrl.SetSort(st.Sort.Column, st.Sort.Direction.Toggle()); err != nil {
			m.err = err
		}
		m.rebuildTable()
		return m, nil

	case key.Matches(msg, keys.Filter):
		m.mode = modeFilter
		m.input.SetValue(st.Filter.Value)
		m.input.CursorEnd()
		return m, m.input.Focus()

	case key.Matches(msg, keys.FilterField):
		m.filterCol = m.nextFilterable(m.filterCol)
		if !st.Filter.Active() {
			return m, nil
		}
		return m, m.applyFilter(st.Filter.Value)

	case key.Matches(msg, keys.NextPage):
		if st.Page >= ctrl.View().Page.Pages() {
			return m, nil
		}
		req := ctrl.SetPage(st.Page + 1)
		m.rebuildTable()
		return m, fetch(m.ctx, ctrl, req)

	case key.Matches(msg, keys.PrevPage):
		if st.Page <= 1 {
			return m, nil
		}
		req := ctrl.SetPage(st.Page - 1)
		m.rebuildTable()
		return m, fetch(m.ctx, ctrl, req)

	case key.Matches(msg, keys.PerPage):
		next := perPageChoices[(indexOfInt(perPageChoices, st.PerPage)+1)%len(perPageChoices)]
		req := ctrl.SetPerPage(next)
		m.rebuildTable()
		return m, fetch(m.ctx, ctrl, req)

	case key.Matches(msg, keys.Open):
		return m.drillDown()

	case key.Matches(msg, keys.Back):
		if st.Filter.Active() {
			return m, m.applyFilter("")
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.mode = modeTable
		m.input.Blur()
		return m, m.applyFilter(m.input.Value())
	case tea.KeyEsc:
		m.mode = modeTable
		m.input.Blur()
		m.input.SetValue(m.main.ctrl.State().Filter.Value)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateDetails(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.shutdown()
		return m, tea.Quit
	case key.Matches(msg, keys.Back):
		return m, m.goBack()
	}
	var cmd tea.Cmd
	m.detailsVP, cmd = m.detailsVP.Update(msg)
	return m, cmd
}

func (m *Model) applyFilter(value string) tea.Cmd {
	ctrl := m.main.ctrl
	field := ""
	if value != "" && m.filterCol < len(m.entity.Fields) {
		field = m.entity.Fields[m.filterCol].Field
	}
	req, err := ctrl.SetFilter(field, value)
	if err != nil {
		m.err = err
		return nil
	}
	m.err = nil
	m.rebuildTable()
	m.table.SetCursor(0)
	return fetch(m.ctx, ctrl, req)
}

// drillDown opens the selected row. The table view is unmounted and its
// state pushed so goBack can rebuild it.
func (m Model) drillDown() (tea.Model, tea.Cmd) {
	v := m.main.ctrl.View()
	i := m.table.Cursor()
	if i < 0 || i >= len(v.Rows) {
		return m, nil
	}
	m.detail = captureDetails(m.main.ctrl, v.Rows[i], m.opts.Clock.Now())
	m.history = append(m.history, m.main.ctrl.State())
	m.unmount()
	m.mode = modeDetails
	m.detailsVP.SetContent(m.detail.render(m.detailsVP.Width))
	m.detailsVP.GotoTop()
	return m, nil
}

func (m *Model) goBack() tea.Cmd {
	if len(m.history) == 0 {
		m.mode = modeTable
		return nil
	}
	st := m.history[len(m.history)-1]
	m.history = m.history[:len(m.history)-1]
	m.mode = modeTable
	return m.switchTo(st)
}

func (m *Model) shutdown() {
	m.unmount()
	m.cancel()
}

func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	// header, tabs and status line
	chrome := 3 + lipgloss.Height(m.help.View(keys))
	if m.card != nil {
		chrome += m.cardHeight()
	}
	h := clamp(m.height-chrome-2, 5, 200)
	m.table.SetHeight(h)
	m.table.SetWidth(m.width - 2)
	m.detailsVP.Width = m.width - 4
	m.detailsVP.Height = clamp(m.height-4, 5, 200)
	m.help.Width = m.width
}

func (m Model) cardHeight() int {
	n := 5
	if m.entity.Top != nil && m.entity.Top.N > 0 {
		n = m.entity.Top.N
	}
	return n + 4
}

func (m *Model) rebuildTable() {
	if m.main == nil {
		return
	}
	v := m.main.ctrl.View()
	fields := m.entity.Fields
	widths := colWidths(fields, m.table.Width())

	cols := make([]btable.Column, len(fields))
	for i, f := range fields {
		title := f.Title
		if i == v.Sort.Column {
			title += styles.SortMark(v.Sort.Direction == domain.Descending)
		}
		cols[i] = btable.Column{Title: fit(title, widths[i]), Width: widths[i]}
	}
	rows := make([]btable.Row, 0, len(v.Rows))
	for _, r := range v.Rows {
		row := make(btable.Row, len(fields))
		for i := range fields {
			if i < len(r.Cells) {
				row[i] = fit(r.Cells[i], widths[i])
			}
		}
		rows = append(rows, row)
	}
	// rows first so a narrower schema never sees longer rows
	m.table.SetRows(nil)
	m.table.SetColumns(cols)
	m.table.SetRows(rows)
	if c := m.table.Cursor(); len(rows) > 0 && (c < 0 || c >= len(rows)) {
		m.table.SetCursor(0)
	}
}

func (m Model) nextSortable(cur int) int {
	n := len(m.entity.Fields)
	for i := 1; i <= n; i++ {
		c := (cur + i) % n
		if m.entity.Fields[c].Sortable {
			return c
		}
	}
	return cur
}

func (m Model) nextFilterable(cur int) int {
	n := len(m.entity.Fields)
	for i := 1; i <= n; i++ {
		c := (cur + i) % n
		if m.entity.Fields[c].Filterable {
			return c
		}
	}
	return cur
}

func (m Model) defaultFilterCol() int {
	for i, f := range m.entity.Fields {
		if f.Filterable {
			return i
		}
	}
	return 0
}

func (m Model) View() string {
	if m.mode == modeDetails {
		head := styles.Header.Render("kmon │ " + m.detail.title())
		body := styles.Box.Width(m.width - 2).Render(m.detailsVP.View())
		foot := styles.Footer.Render("↑/↓ scroll • esc back • q quit")
		return lipgloss.JoinVertical(lipgloss.Left, head, body, foot)
	}
	if m.main == nil {
		return styles.Danger.Render(fmt.Sprintf("error: %v", m.err))
	}

	v := m.main.ctrl.View()
	sortName := ""
	if v.Sort.Column < len(m.entity.Fields) {
		sortName = m.entity.Fields[v.Sort.Column].Title + " " + v.Sort.Direction.String()
	}
	filter := "none"
	if v.Filter.Active() {
		filter = fmt.Sprintf("%s~%q", v.Filter.Field, v.Filter.Value)
	}
	head := styles.Header.Render(fmt.Sprintf(
		"kmon │ sort: %s │ filter: %s │ page %d/%d (%d rows, %d/page) │ %s",
		sortName, filter, v.Page.Page, v.Page.Pages(), v.Page.Total, v.Page.PerPage, v.Status,
	))

	body := lipgloss.NewStyle().Padding(0, 1).Render(m.table.View())

	parts := []string{head, m.renderTabs(), body}
	if m.mode == modeFilter {
		field := ""
		if m.filterCol < len(m.entity.Fields) {
			field = m.entity.Fields[m.filterCol].Title
		}
		parts = append(parts, styles.Faint.Render(field+" ")+m.input.View())
	}
	parts = append(parts, m.renderStatus(v))
	if m.card != nil {
		parts = append(parts, m.renderCard())
	}
	parts = append(parts, styles.Footer.Render(m.help.View(keys)))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderTabs() string {
	names := m.reg.Names()
	tabs := make([]string, 0, len(names))
	for _, n := range names {
		e, _ := m.reg.Lookup(n)
		title := e.Title
		if title == "" {
			title = e.Name
		}
		if n == m.entity.Name {
			tabs = append(tabs, styles.TabActive.Render(title))
		} else {
			tabs = append(tabs, styles.Tab.Render(title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderStatus(v table.View) string {
	switch {
	case m.err != nil:
		return styles.Danger.Render("error: " + m.err.Error())
	case v.Stale:
		msg := "stale"
		if v.Err != nil {
			msg += ": " + v.Err.Error()
		}
		return styles.Danger.Render(msg)
	case v.Updated.IsZero():
		return styles.Faint.Render("Waiting for data")
	}
	return styles.Good.Render("Updated at " + v.Updated.Format("15:04:05"))
}

func (m Model) renderCard() string {
	top := m.card.Top()
	spec := m.entity.Top
	cols := []int{0}
	for _, f := range []string{spec.Primary, spec.Secondary} {
		if i, ok := m.entity.Column(f); ok {
			cols = append(cols, i)
		}
	}
	var b strings.Builder
	b.WriteString(styles.Title.Render(m.card.Title()) + "\n")
	if len(top) == 0 {
		b.WriteString(styles.Faint.Render("nothing to show") + "\n")
	}
	for _, r := range top {
		cells := make([]string, 0, len(cols))
		for _, c := range cols {
			if c < len(r.Cells) {
				cells = append(cells, fmt.Sprintf("%-24s", fit(r.Cells[c], 24)))
			}
		}
		b.WriteString(strings.Join(cells, " ") + "\n")
	}
	b.WriteString(styles.Faint.Render(m.card.Caption(m.opts.Interval)))
	w := m.width - 2
	if w < 20 {
		w = 20
	}
	return styles.Card.Width(w).Render(b.String())
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return 0
}

func indexOfInt(vals []int, v int) int {
	for i, x := range vals {
		if x == v {
			return i
		}
	}
	return -1
}
