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

var errNoIndicators = errors.New("crawl requires at least one indicator")

// CrawlCmd returns the crawl command.
func CrawlCmd(cfg config.Config) *Command {
	flagSet := flag.NewFlagSet("crawl", flag.ContinueOnError)
	minPrevalence := flagSet.Uint32("min-prevalence", cfg.MinPrevalenceToBeGood, "Entities with prevalence at or above this value are considered globally popular and stop the crawl")

	return &Command{
		Flags: flagSet,
		Usage: "crawl <indicator>... [flags]",
		Short: "Crawl from known-bad indicators and report reachable entities and interactions",
		Long:  "Perform a prevalence-gated breadth-first crawl starting at the given indicators, across both the forward and reverse maps, printing every entity and interaction found bad.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execCrawl(o, cfg, args, *minPrevalence)
		},
	}
}

func execCrawl(o *IO, cfg config.Config, indicators []string, minPrevalence uint32) error {
	if len(indicators) == 0 {
		return errNoIndicators
	}

	iw, err := intelweb.OpenExisting(fs.NewReal(), cfg.Prefix)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	defer iw.Close()

	count, entities, interactions, err := iw.Crawl(indicators, minPrevalence)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	o.Println("entities:", count)

	for _, e := range entities {
		o.Println(" ", e)
	}

	o.Println("interactions:", len(interactions))

	for _, in := range interactions {
		o.Printf("  %s %s %s\n", in.Context, in.From, in.To)
	}

	return nil
}
