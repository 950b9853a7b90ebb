package cli

import (
	"context"
	"fmt"

	"github.com/cyberintel/intelweb/internal/config"
	"github.com/cyberintel/intelweb/internal/fs"
	"github.com/cyberintel/intelweb/internal/intelweb"

	flag "github.com/spf13/pflag"
)

// CreateCmd returns the create command.
func CreateCmd(cfg config.Config) *Command {
	flagSet := flag.NewFlagSet("create", flag.ContinueOnError)
	maxItems := flagSet.Uint32("max-items", cfg.MaxDataItems, "Maximum distinct keys to size the hash tables for")

	return &Command{
		Flags: flagSet,
		Usage: "create [flags]",
		Short: "Create a new intel web at the configured prefix",
		Long:  "Create the forward and reverse hash table files for a new intel web. Fails if they already exist.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execCreate(o, cfg, *maxItems)
		},
	}
}

func execCreate(o *IO, cfg config.Config, maxItems uint32) error {
	iw, err := intelweb.CreateNew(fs.NewReal(), cfg.Prefix, maxItems)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer iw.Close()

	o.Println("created intel web at prefix", cfg.Prefix)

	return nil
}
