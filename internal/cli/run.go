package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cyberintel/intelweb/internal/config"

	flag "github.com/spf13/pflag"
)

// Run is the main entry point. Returns exit code.
// sigCh can be nil if signal handling is not needed (e.g., in tests).
func Run(_ io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globalFlags := flag.NewFlagSet("intelweb", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(&strings.Builder{})

	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagCwd := globalFlags.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globalFlags.StringP("config", "c", "", "Use specified config `file`")
	flagPrefix := globalFlags.String("prefix", "", "Override the file-name `prefix` the intel web is stored under")
	flagMaxItems := globalFlags.Uint32("max-items", 0, "Override max-data-items hash table sizing")
	flagMinPrevalence := globalFlags.Uint32("min-prevalence", 0, "Override the prevalence threshold used by crawl")

	if err := globalFlags.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	workDir := *flagCwd
	if workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			workDir = wd
		}
	}

	envSlice := make([]string, 0, len(env))
	for k, v := range env {
		envSlice = append(envSlice, k+"="+v)
	}

	cfg, sources, err := config.Load(config.LoadInput{
		WorkDir:                  workDir,
		ConfigPath:               *flagConfig,
		CLIOverride:              config.Config{Prefix: *flagPrefix, MaxDataItems: *flagMaxItems, MinPrevalenceToBeGood: *flagMinPrevalence},
		HasPrefixOverride:        globalFlags.Changed("prefix"),
		HasMaxDataItemsOverride:  globalFlags.Changed("max-items"),
		HasMinPrevalenceOverride: globalFlags.Changed("min-prevalence"),
		Env:                      envSlice,
	})
	if err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	commands := allCommands(cfg, sources)

	commandMap := make(map[string]*Command, len(commands))
	for _, cmd := range commands {
		commandMap[cmd.Name()] = cmd
	}

	commandAndArgs := globalFlags.Args()

	if *flagHelp || (len(commandAndArgs) == 0 && globalFlags.NFlag() == 0) {
		printUsage(out, commands)

		return 0
	}

	if len(commandAndArgs) == 0 {
		fprintln(errOut, "error: no command provided")
		printUsage(errOut, commands)

		return 1
	}

	cmdName := commandAndArgs[0]

	cmd, ok := commandMap[cmdName]
	if !ok {
		fprintln(errOut, "error: unknown command:", cmdName)
		printUsage(errOut, commands)

		return 1
	}

	cmdIO := NewIO(out, errOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)

	go func() {
		done <- cmd.Run(ctx, cmdIO, commandAndArgs[1:])
	}()

	select {
	case exitCode := <-done:
		if exitCode != 0 {
			return exitCode
		}

		return cmdIO.Finish()
	case <-sigCh:
		fprintln(errOut, "shutting down with 5s timeout...")
		cancel()
	}

	select {
	case <-done:
		fprintln(errOut, "graceful shutdown ok (130)")

		return 130
	case <-time.After(5 * time.Second):
		fprintln(errOut, "graceful shutdown timed out, forced exit (130)")

		return 130
	case <-sigCh:
		fprintln(errOut, "graceful shutdown interrupted, forced exit (130)")

		return 130
	}
}

// allCommands returns all commands in display order.
// Dependencies are captured via closures in each command constructor.
func allCommands(cfg config.Config, sources config.Sources) []*Command {
	return []*Command{
		CreateCmd(cfg),
		IngestCmd(cfg),
		CrawlCmd(cfg),
		PurgeCmd(cfg),
		StatsCmd(cfg),
		ReplCmd(cfg),
		PrintConfigCmd(cfg, sources),
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

const globalOptionsHelp = `  -h, --help                 Show help
  -C, --cwd <dir>            Run as if started in <dir>
  -c, --config <file>        Use specified config file
  --prefix <prefix>          Override the intel web file-name prefix
  --max-items <n>            Override max-data-items hash table sizing
  --min-prevalence <n>       Override the crawl prevalence threshold`

func printGlobalOptions(w io.Writer) {
	fprintln(w, "Usage: intelweb [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Global flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Run 'intelweb --help' for a list of commands.")
}

func printUsage(w io.Writer, commands []*Command) {
	fprintln(w, "intelweb - disk-resident bidirectional threat-intel crawl engine")
	fprintln(w)
	fprintln(w, "Usage: intelweb [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}
}
