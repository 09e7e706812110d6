// Command loom is the CLI for the streaming tool-calling orchestrator.
//
// Usage:
//
//	loom run --prompt "find every TODO in this repo"
//	loom run --model qwen2.5:7b --workdir ./service --auto-approve filesystem
//	loom chat
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/loomhq/loom/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Run     RunCmd     `cmd:"" help:"Run a single prompt through the orchestrator."`
	Chat    ChatCmd    `cmd:"" help:"Start an interactive chat session."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (text or json)."`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println("loom version dev")
	return nil
}

// shouldSkipBanner skips the startup banner for informational commands.
func shouldSkipBanner(args []string) bool {
	for _, arg := range args {
		if arg == "version" {
			return true
		}
	}
	return false
}

// printBanner prints a colored ASCII banner when stdout is a terminal.
func printBanner() {
	if fileInfo, err := os.Stdout.Stat(); err != nil || (fileInfo.Mode()&os.ModeCharDevice) == 0 {
		return
	}
	const (
		cyan  = "\033[38;2;56;189;248m"
		reset = "\033[0m"
	)
	banner := `
 _
| | ___   ___  _ __ ___
| |/ _ \ / _ \| '_ ' _ \
| | (_) | (_) | | | | | |
|_|\___/ \___/|_| |_| |_|
`
	fmt.Printf("%s%s%s\n", cyan, banner, reset)
}

func main() {
	if !shouldSkipBanner(os.Args) {
		printBanner()
	}

	_ = config.LoadEnvFiles()

	cli := CLI{}
	parseCtx := kong.Parse(&cli,
		kong.Name("loom"),
		kong.Description("loom - a streaming tool-calling orchestrator"),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = parseCtx.Run(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
