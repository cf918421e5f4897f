// Package summary backs the Top-N cards shown next to an entity table.
package summary

import (
	"fmt"
	"time"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
	"github.com/HaPhanBaoMinh/kmon/internal/table"
	"github.com/HaPhanBaoMinh/kmon/internal/topn"
)

// Card polls its own controller over the entity and ranks the full row set.
type Card struct {
	spec domain.TopNSpec
	ctrl *table.Controller
}

func New(entity domain.Entity, opts table.Options) (*Card, error) {
	if entity.Top == nil {
		return nil, fmt.Errorf("entity %s has no summary", entity.Name)
	}
	opts.State = domain.DefaultViewState(entity.Name)
	ctrl, err := table.New(entity, opts)
	if err != nil {
		return nil, err
	}
	return &Card{spec: *entity.Top, ctrl: ctrl}, nil
}

func (c *Card) Controller() *table.Controller { return c.ctrl }

func (c *Card) Title() string { return c.spec.Title }

// Top returns the current selection, recomputed from the latest poll.
func (c *Card) Top() []domain.Row {
	return topn.Select(c.ctrl.Rows(), c.spec)
}

// Caption reports when the card was last updated and when the next poll is due.
func (c *Card) Caption(interval time.Duration) string {
	v := c.ctrl.View()
	if v.Updated.IsZero() {
		return "Waiting for data"
	}
	s := fmt.Sprintf("Updated at %s | Next %s", v.Updated.Format("15:04:05"), v.Updated.Add(interval).Format("15:04:05"))
	if v.Stale {
		s += " | stale"
	}
	return s
}
