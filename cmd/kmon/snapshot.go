package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
	"github.com/HaPhanBaoMinh/kmon/internal/table"
	"github.com/HaPhanBaoMinh/kmon/internal/ui/styles"
)

var (
	snapSort    string
	snapDesc    bool
	snapFilter  string
	snapPage    int
	snapPerPage int
	snapSamples int
	snapOutput  string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot ENTITY",
	Short: "Poll an entity and print one page",
	Long: "snapshot polls ENTITY --samples times, one interval apart, so rate " +
		"columns are populated, then prints the requested page and exits.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		reg, err := buildRegistry(cfg, log)
		if err != nil {
			return err
		}
		e, err := reg.Lookup(args[0])
		if err != nil {
			return err
		}
		st, err := snapshotState(e)
		if err != nil {
			return err
		}
		ctrl, err := table.New(e, table.Options{Window: cfg.RateWindow, State: st, Logger: log})
		if err != nil {
			return err
		}
		defer ctrl.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := sample(ctx, ctrl, snapSamples, cfg.Interval); err != nil {
			return err
		}

		v := ctrl.View()
		switch snapOutput {
		case "yaml":
			return writeYAML(e, v)
		case "table", "":
			fmt.Println(renderSnapshot(e, v))
			return nil
		default:
			return fmt.Errorf("unknown output %q", snapOutput)
		}
	},
}

func init() {
	f := snapshotCmd.Flags()
	f.StringVar(&snapSort, "sort", "", "column to sort by (field or title)")
	f.BoolVar(&snapDesc, "desc", false, "sort descending")
	f.StringVar(&snapFilter, "filter", "", "filter as field=value")
	f.IntVar(&snapPage, "page", domain.DefaultPage, "page number")
	f.IntVar(&snapPerPage, "per-page", domain.DefaultPerPage, "rows per page")
	f.IntVar(&snapSamples, "samples", 2, "number of polls before printing")
	f.StringVarP(&snapOutput, "output", "o", "table", "output format: table or yaml")
}

func snapshotState(e domain.Entity) (domain.ViewState, error) {
	st := domain.DefaultViewState(e.Name)
	st.Page, st.PerPage = snapPage, snapPerPage
	if snapSort != "" {
		col, ok := e.Column(snapSort)
		if !ok || !e.Fields[col].Sortable {
			return st, fmt.Errorf("%s: %q is not a sortable column", e.Name, snapSort)
		}
		st.Sort.Column = col
	}
	if snapDesc {
		st.Sort.Direction = domain.Descending
	}
	if snapFilter != "" {
		field, value, ok := strings.Cut(snapFilter, "=")
		if !ok {
			return st, fmt.Errorf("filter %q: want field=value", snapFilter)
		}
		col, found := e.Column(field)
		if !found || !e.Fields[col].Filterable {
			return st, fmt.Errorf("%s: %q is not a filterable column", e.Name, field)
		}
		st.Filter = domain.FilterSpec{Field: e.Fields[col].Field, Value: value}
	}
	return st.Normalize(), nil
}

// sample syncs ctrl n times, waiting every between polls.
func sample(ctx context.Context, ctrl *table.Controller, n int, every time.Duration) error {
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(every):
			}
		}
		if err := ctrl.Sync(ctx); err != nil {
			return err
		}
	}
	return nil
}

func renderSnapshot(e domain.Entity, v table.View) string {
	headers := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		headers[i] = f.Title
		if i == v.Sort.Column {
			headers[i] += styles.SortMark(v.Sort.Direction == domain.Descending)
		}
	}
	rows := make([][]string, len(v.Rows))
	for i, r := range v.Rows {
		rows[i] = r.Cells
	}

	width := 120
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	t := ltable.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == ltable.HeaderRow {
				return s.Bold(true)
			}
			if col < len(e.Fields) && e.Fields[col].Numeric {
				return s.Align(lipgloss.Right)
			}
			return s
		})

	status := fmt.Sprintf("%s  page %d/%d  %d rows  updated %s",
		e.Title, v.Page.Page, v.Page.Pages(), v.Page.Total, humanize.Time(v.Updated))
	if v.Filter.Active() {
		status += fmt.Sprintf("  filter %s=%q", v.Filter.Field, v.Filter.Value)
	}
	return status + "\n" + t.String()
}

type snapshotDoc struct {
	Entity  string           `yaml:"entity"`
	Page    int              `yaml:"page"`
	Pages   int              `yaml:"pages"`
	Total   int              `yaml:"total"`
	Updated time.Time        `yaml:"updated"`
	Rows    []map[string]any `yaml:"rows"`
}

func writeYAML(e domain.Entity, v table.View) error {
	doc := snapshotDoc{
		Entity:  e.Name,
		Page:    v.Page.Page,
		Pages:   v.Page.Pages(),
		Total:   v.Page.Total,
		Updated: v.Updated,
		Rows:    make([]map[string]any, 0, len(v.Rows)),
	}
	for _, r := range v.Rows {
		m := make(map[string]any, len(e.Fields))
		for i, f := range e.Fields {
			if i < len(r.Values) && r.Values[i] != nil {
				m[f.Field] = r.Values[i]
			}
		}
		doc.Rows = append(doc.Rows, m)
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(doc)
}
