package cli

import (
	"context"
	"fmt"

	"github.com/cyberintel/intelweb/internal/config"
	"github.com/cyberintel/intelweb/internal/fs"
	"github.com/cyberintel/intelweb/internal/intelweb"

	flag "github.com/spf13/pflag"
)

// StatsCmd returns the stats command.
func StatsCmd(cfg config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("stats", flag.ContinueOnError),
		Usage: "stats",
		Short: "Show the number of distinct entities and interactions stored",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execStats(o, cfg)
		},
	}
}

func execStats(o *IO, cfg config.Config) error {
	iw, err := intelweb.OpenExisting(fs.NewReal(), cfg.Prefix)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	defer iw.Close()

	entities, interactions, err := iw.Stats()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	o.Println("entities:", entities)
	o.Println("interactions:", interactions)

	return nil
}
