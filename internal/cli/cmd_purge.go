package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyberintel/intelweb/internal/config"
	"github.com/cyberintel/intelweb/internal/fs"
	"github.com/cyberintel/intelweb/internal/intelweb"

	flag "github.com/spf13/pflag"
)

var errPurgeNeedsEntity = errors.New("purge requires exactly one entity")

// PurgeCmd returns the purge command.
func PurgeCmd(cfg config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("purge", flag.ContinueOnError),
		Usage: "purge <entity>",
		Short: "Remove every interaction involving entity, in both directions",
		Long:  "Search both the forward and reverse maps for entity, collect every matching triple, then erase each in all four (key, value, role) combinations, so later chain traversal never sees a half-removed interaction.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execPurge(o, cfg, args)
		},
	}
}

func execPurge(o *IO, cfg config.Config, args []string) error {
	if len(args) != 1 {
		return errPurgeNeedsEntity
	}

	iw, err := intelweb.OpenExisting(fs.NewReal(), cfg.Prefix)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	defer iw.Close()

	purged, err := iw.Purge(args[0])
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}

	if purged {
		o.Println("purged", args[0])
	} else {
		o.Println("nothing to purge for", args[0])
	}

	return nil
}
