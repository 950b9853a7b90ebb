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

var errNoTelemetryFiles = errors.New("ingest requires at least one telemetry file")

// IngestCmd returns the ingest command.
func IngestCmd(cfg config.Config) *Command {
	flagSet := flag.NewFlagSet("ingest", flag.ContinueOnError)

	return &Command{
		Flags: flagSet,
		Usage: "ingest <file>... [flags]",
		Short: "Ingest telemetry lines into the intel web",
		Long:  "Read one or more telemetry files, each line a whitespace-separated \"context from to\" triple, and insert them into the forward and reverse maps.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execIngest(o, cfg, args)
		},
	}
}

func execIngest(o *IO, cfg config.Config, files []string) error {
	if len(files) == 0 {
		return errNoTelemetryFiles
	}

	iw, err := intelweb.OpenExisting(fs.NewReal(), cfg.Prefix)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	defer iw.Close()

	var totalAccepted, totalSkipped int

	for _, file := range files {
		accepted, skipped, err := iw.Ingest(file)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", file, err)
		}

		totalAccepted += accepted
		totalSkipped += skipped

		if skipped > 0 {
			o.WarnLLM(fmt.Sprintf("%s: %d malformed line(s) skipped", file, skipped), "check the file follows the \"context from to\" format")
		}
	}

	o.Println("accepted", totalAccepted, "skipped", totalSkipped)

	return nil
}
