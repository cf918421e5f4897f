package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
	"github.com/HaPhanBaoMinh/kmon/internal/registry"
)

func testModel(t *testing.T) (Model, *clocktesting.FakeClock) {
	t.Helper()
	fc := clocktesting.NewFakeClock(time.Unix(1700000000, 0))
	var polls float64
	src := domain.SourceFunc(func(_ context.Context, page, perPage int) (domain.Page, error) {
		polls++
		recs := make([]domain.Record, 0, 12)
		for i := 0; i < 12; i++ {
			recs = append(recs, domain.Record{
				"name":          fmt.Sprintf("link-%02d", i),
				"deliveryCount": polls * float64(10*(i+1)),
				"linkType":      []string{"endpoint", "router"}[i%2],
			})
		}
		return domain.Page{Data: recs, Page: page, PerPage: perPage, Timestamp: fc.Now()}, nil
	})
	links := domain.Entity{
		Name:  "links",
		Title: "Links",
		Key:   "name",
		Fields: []domain.FieldSchema{
			{Field: "name", Title: "Link", Sortable: true, Filterable: true},
			{Field: "deliveryCount", Title: "Deliveries", Numeric: true, Sortable: true},
			{Field: "deliveryRate", Title: "Rate", Numeric: true, Sortable: true, Format: "rate"},
			{Field: "linkType", Title: "Type", Filterable: true},
		},
		Rates:  []domain.RateSpec{{Counter: "deliveryCount", Field: "deliveryRate"}},
		Top:    &domain.TopNSpec{Title: "Busiest links", Primary: "deliveryRate", Secondary: "deliveryCount"},
		Source: func() domain.DataSource { return src },
	}
	hosts := domain.Entity{
		Name:   "hosts",
		Title:  "Hosts",
		Fields: []domain.FieldSchema{{Field: "host", Title: "Host"}},
		Source: func() domain.DataSource {
			return domain.SourceFunc(func(_ context.Context, page, perPage int) (domain.Page, error) {
				return domain.Page{Data: []domain.Record{{"host": "a"}}, Page: page, PerPage: perPage}, nil
			})
		},
	}
	reg, err := registry.New(links, hosts)
	if err != nil {
		t.Fatal(err)
	}
	m, err := New(reg, "", Options{Clock: fc})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.shutdown() })
	return m, fc
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(m Model, k string) Model {
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	return update(m, msg)
}

// poll runs one fetch of the table view synchronously.
func pollOnce(m Model) Model {
	ctrl := m.main.ctrl
	return update(m, fetch(m.ctx, ctrl, ctrl.Refresh())())
}

func TestFetchedRowsReachTheTable(t *testing.T) {
	m, _ := testModel(t)
	if !strings.Contains(m.View(), "Waiting for data") {
		t.Fatalf("view before data:\n%s", m.View())
	}
	m = pollOnce(m)
	v := m.main.ctrl.View()
	if len(v.Rows) != 10 || v.Page.Total != 12 {
		t.Fatalf("rows = %d of %d", len(v.Rows), v.Page.Total)
	}
	out := m.View()
	for _, want := range []string{"link-00", "Links", "Hosts", "Busiest links", "Updated at"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view lacks %q:\n%s", want, out)
		}
	}
}

func TestSortKeys(t *testing.T) {
	m, _ := testModel(t)
	m = pollOnce(m)
	m = press(m, "s")
	if st := m.main.ctrl.State(); st.Sort.Column != 1 || st.Sort.Direction != domain.Ascending {
		t.Fatalf("sort = %+v", st.Sort)
	}
	m = press(m, "S")
	if st := m.main.ctrl.State(); st.Sort.Direction != domain.Descending {
		t.Fatalf("sort = %+v", st.Sort)
	}
	if first := m.main.ctrl.View().Rows[0].Record["name"]; first != "link-11" {
		t.Fatalf("first row = %v", first)
	}
}

func TestFilterOnChosenColumn(t *testing.T) {
	m, _ := testModel(t)
	m = pollOnce(m)
	m = press(m, "f")
	m = press(m, "/")
	if m.mode != modeFilter {
		t.Fatal("filter input not open")
	}
	m = press(m, "router")
	m = press(m, "enter")
	st := m.main.ctrl.State()
	if st.Filter.Field != "linkType" || st.Filter.Value != "router" {
		t.Fatalf("filter = %+v", st.Filter)
	}
	if total := m.main.ctrl.View().Page.Total; total != 6 {
		t.Fatalf("filtered total = %d", total)
	}
	m = press(m, "esc")
	if m.main.ctrl.State().Filter.Active() {
		t.Fatal("esc did not clear the filter")
	}
}

func TestPaging(t *testing.T) {
	m, _ := testModel(t)
	m = pollOnce(m)
	m = press(m, "right")
	if p := m.main.ctrl.State().Page; p != 2 {
		t.Fatalf("page = %d", p)
	}
	m = press(m, "right")
	if p := m.main.ctrl.State().Page; p != 2 {
		t.Fatalf("paged past the end: %d", p)
	}
	m = press(m, "p")
	st := m.main.ctrl.State()
	if st.PerPage != 20 || st.Page != 1 {
		t.Fatalf("state = %+v", st)
	}
}

func TestDrillDownAndBack(t *testing.T) {
	m, fc := testModel(t)
	m = pollOnce(m)
	fc.Step(5 * time.Second)
	m = pollOnce(m)
	m = press(m, "s")
	m = press(m, "S")

	old := m.main.ctrl
	m = press(m, "enter")
	if m.mode != modeDetails || len(m.history) != 1 {
		t.Fatalf("mode = %v history = %d", m.mode, len(m.history))
	}
	if !old.Closed() || m.main != nil {
		t.Fatal("table view still mounted")
	}
	out := m.View()
	for _, want := range []string{"link-11", "Rate history", "Attributes"} {
		if !strings.Contains(out, want) {
			t.Fatalf("details lack %q:\n%s", want, out)
		}
	}

	m = press(m, "esc")
	if m.mode != modeTable || len(m.history) != 0 {
		t.Fatalf("mode = %v history = %d", m.mode, len(m.history))
	}
	if m.main.ctrl == old {
		t.Fatal("controller not rebuilt")
	}
	if st := m.main.ctrl.State(); st.Sort.Column != 1 || st.Sort.Direction != domain.Descending {
		t.Fatalf("restored sort = %+v", st.Sort)
	}

	// a fetch issued before drill-down lands after return
	late := fetchedMsg{ctrl: old, res: old.Fetch(context.Background(), old.Refresh())}
	m = update(m, late)
	if m.main.ctrl.View().Status.String() != "idle" {
		t.Fatal("late result reached the new controller")
	}
}

func TestSwitchEntity(t *testing.T) {
	m, _ := testModel(t)
	m = press(m, "tab")
	if m.entity.Name != "hosts" || m.card != nil {
		t.Fatalf("entity = %s card = %v", m.entity.Name, m.card)
	}
	m = press(m, "tab")
	if m.entity.Name != "links" || m.card == nil {
		t.Fatalf("entity = %s", m.entity.Name)
	}
}

func TestStalePollIgnored(t *testing.T) {
	m, _ := testModel(t)
	if _, cmd := m.Update(pollMsg{&feed{}}); cmd != nil {
		t.Fatal("poll from an unmounted feed issued a fetch")
	}
}

func TestColWidths(t *testing.T) {
	fields := []domain.FieldSchema{
		{Field: "name", Title: "Link"},
		{Field: "n", Title: "Deliveries", Numeric: true},
		{Field: "u", Title: "CPU%", Numeric: true, Format: "bar"},
	}
	w := colWidths(fields, 100)
	if w[1] < len("Deliveries") || w[2] < 16 {
		t.Fatalf("widths = %v", w)
	}
	if w[0] <= 8 {
		t.Fatalf("text column did not grow: %v", w)
	}
	sum := 0
	for _, x := range w {
		sum += x + 2
	}
	if sum > 100 {
		t.Fatalf("widths %v exceed 100", w)
	}

	narrow := colWidths(fields, 10)
	if narrow[0] != 8 || narrow[2] != 16 {
		t.Fatalf("narrow = %v", narrow)
	}
}
