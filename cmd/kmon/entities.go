package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
	"github.com/HaPhanBaoMinh/kmon/internal/ui/styles"
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List the entities of the configured backend and their columns",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		reg, err := buildRegistry(cfg, zap.NewNop())
		if err != nil {
			return err
		}
		for _, name := range reg.Names() {
			e, err := reg.Lookup(name)
			if err != nil {
				return err
			}
			fmt.Println(describeEntity(e))
		}
		return nil
	},
}

func describeEntity(e domain.Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", styles.Title.Render(e.Name), e.Title)
	for _, f := range e.Fields {
		var flags []string
		if f.Sortable {
			flags = append(flags, "sort")
		}
		if f.Filterable {
			flags = append(flags, "filter")
		}
		if f.Format != "" {
			flags = append(flags, f.Format)
		}
		fmt.Fprintf(&b, "  %-28s %-24s %s\n", f.Field, f.Title, strings.Join(flags, ","))
	}
	for _, r := range e.Rates {
		fmt.Fprintf(&b, "  rate %s <- %s\n", r.Field, r.Counter)
	}
	if e.Top != nil {
		fmt.Fprintf(&b, "  top %d: %s (%s, %s)\n", e.Top.N, e.Top.Title, e.Top.Primary, e.Top.Secondary)
	}
	return b.String()
}
