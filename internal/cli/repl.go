package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cyberintel/intelweb/internal/config"
	"github.com/cyberintel/intelweb/internal/fs"
	"github.com/cyberintel/intelweb/internal/intelweb"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

// ReplCmd returns the repl command.
func ReplCmd(cfg config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("repl", flag.ContinueOnError),
		Usage: "repl",
		Short: "Open an interactive session against the configured intel web",
		Long:  "Start a readline-style REPL with history, offering ingest/crawl/purge/stats against the intel web at the configured prefix.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execRepl(o, cfg)
		},
	}
}

func execRepl(o *IO, cfg config.Config) error {
	iw, err := intelweb.OpenExisting(fs.NewReal(), cfg.Prefix)
	if err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	defer iw.Close()

	r := &replState{io: o, iw: iw, prefix: cfg.Prefix, minPrevalence: cfg.MinPrevalenceToBeGood}

	return r.run()
}

// replState is the interactive command loop over one open IntelWeb.
type replState struct {
	io            *IO
	iw            *intelweb.IntelWeb
	prefix        string
	minPrevalence uint32
	liner         *liner.State
}

func replHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".intelweb_history")
}

func (r *replState) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(replHistoryFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	r.io.Println(fmt.Sprintf("intelweb repl - prefix=%s", r.prefix))
	r.io.Println("Type 'help' for available commands.")
	r.io.Println()

	for {
		line, err := r.liner.Prompt("intelweb> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				r.io.Println("Bye!")
				break
			}

			return fmt.Errorf("repl: reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			r.io.Println("Bye!")
			r.saveHistory()

			return nil
		case "help", "?":
			r.printHelp()
		case "ingest":
			r.cmdIngest(args)
		case "crawl":
			r.cmdCrawl(args)
		case "purge":
			r.cmdPurge(args)
		case "stats":
			r.cmdStats()
		default:
			r.io.Println(fmt.Sprintf("Unknown command: %s (type 'help' for commands)", cmd))
		}
	}

	r.saveHistory()

	return nil
}

func (r *replState) saveHistory() {
	path := replHistoryFile()
	if path == "" {
		return
	}

	if f, err := os.Create(path); err == nil {
		r.liner.WriteHistory(f)
		f.Close()
	}
}

func (r *replState) completer(line string) []string {
	commands := []string{"ingest", "crawl", "purge", "stats", "help", "exit", "quit", "q"}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *replState) printHelp() {
	r.io.Println("Commands:")
	r.io.Println("  ingest <file>...            Ingest telemetry lines")
	r.io.Println("  crawl <indicator>... [min]  Crawl from indicators (optional min-prevalence)")
	r.io.Println("  purge <entity>              Remove every interaction for entity")
	r.io.Println("  stats                       Show entity/interaction counts")
	r.io.Println("  help                        Show this help")
	r.io.Println("  exit / quit / q             Exit")
}

func (r *replState) cmdIngest(args []string) {
	if len(args) == 0 {
		r.io.Println("Usage: ingest <file>...")
		return
	}

	for _, file := range args {
		accepted, skipped, err := r.iw.Ingest(file)
		if err != nil {
			r.io.Println("Error:", err)
			continue
		}

		r.io.Println(fmt.Sprintf("%s: accepted=%d skipped=%d", file, accepted, skipped))
	}
}

func (r *replState) cmdCrawl(args []string) {
	if len(args) == 0 {
		r.io.Println("Usage: crawl <indicator>... [min-prevalence]")
		return
	}

	minPrevalence := r.minPrevalence
	indicators := args

	if n, err := strconv.ParseUint(args[len(args)-1], 10, 32); err == nil && len(args) > 1 {
		minPrevalence = uint32(n)
		indicators = args[:len(args)-1]
	}

	count, entities, interactions, err := r.iw.Crawl(indicators, minPrevalence)
	if err != nil {
		r.io.Println("Error:", err)
		return
	}

	r.io.Println("entities:", count)

	for _, e := range entities {
		r.io.Println(" ", e)
	}

	r.io.Println("interactions:", len(interactions))

	for _, in := range interactions {
		r.io.Println(fmt.Sprintf("  %s %s %s", in.Context, in.From, in.To))
	}
}

func (r *replState) cmdPurge(args []string) {
	if len(args) != 1 {
		r.io.Println("Usage: purge <entity>")
		return
	}

	purged, err := r.iw.Purge(args[0])
	if err != nil {
		r.io.Println("Error:", err)
		return
	}

	if purged {
		r.io.Println("purged", args[0])
	} else {
		r.io.Println("nothing to purge for", args[0])
	}
}

func (r *replState) cmdStats() {
	entities, interactions, err := r.iw.Stats()
	if err != nil {
		r.io.Println("Error:", err)
		return
	}

	r.io.Println("entities:", entities)
	r.io.Println("interactions:", interactions)
}
