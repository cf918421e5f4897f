package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/muesli/reflow/wordwrap"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
	"github.com/HaPhanBaoMinh/kmon/internal/format"
	"github.com/HaPhanBaoMinh/kmon/internal/table"
	"github.com/HaPhanBaoMinh/kmon/internal/ui/styles"
	"github.com/HaPhanBaoMinh/kmon/internal/ui/widgets"
)

// details is a snapshot of one row taken when the user drills down. The
// table view is unmounted while it is shown, so rate history is copied out.
type details struct {
	entity domain.Entity
	row    domain.Row
	hist   map[string][]float64
	at     time.Time
}

func captureDetails(ctrl *table.Controller, row domain.Row, at time.Time) details {
	e := ctrl.Entity()
	d := details{entity: e, row: row, hist: map[string][]float64{}, at: at}
	for _, rs := range e.Rates {
		d.hist[rs.Field] = ctrl.RateHistory(row.Record, rs.Counter)
	}
	return d
}

func (d details) title() string {
	name := ""
	if len(d.row.Cells) > 0 {
		name = d.row.Cells[0]
	}
	t := d.entity.Title
	if t == "" {
		t = d.entity.Name
	}
	return fmt.Sprintf("%s %s", t, name)
}

func (d details) render(width int) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render(d.title()))
	b.WriteString("\n")
	b.WriteString(styles.Faint.Render("as of " + d.at.Format("15:04:05")))
	b.WriteString("\n\n")

	for i, f := range d.entity.Fields {
		if i < len(d.row.Cells) {
			b.WriteString(styles.Label.Render(f.Title) + d.row.Cells[i] + "\n")
		}
	}

	if len(d.entity.Rates) > 0 {
		b.WriteString("\n" + styles.Title.Render("Rate history") + "\n")
		for _, rs := range d.entity.Rates {
			h := d.hist[rs.Field]
			spark := widgets.Spark(h, 30)
			if spark == "" {
				spark = styles.Faint.Render("waiting for a second sample")
			}
			b.WriteString(styles.Label.Render(rs.Field) + spark + "  " + format.Pretty(d.row.Record[rs.Field], nil) + "/s\n")
		}
		series := make([][]float64, 0, len(d.entity.Rates))
		for _, rs := range d.entity.Rates {
			series = append(series, d.hist[rs.Field])
		}
		if chart := widgets.Trend(series, max(width-2, 20), 6); chart != "" {
			b.WriteString("\n" + chart + "\n")
			b.WriteString(styles.Faint.Render(d.entity.Rates[0].Field+" highlighted") + "\n")
		}
	}

	keys := make([]string, 0, len(d.row.Record))
	for k := range d.row.Record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("\n" + styles.Title.Render("Attributes") + "\n")
	for _, k := range keys {
		b.WriteString(styles.Label.Render(k) + format.Pretty(d.row.Record[k], nil) + "\n")
	}
	if width > 0 {
		return wordwrap.String(b.String(), width)
	}
	return b.String()
}
