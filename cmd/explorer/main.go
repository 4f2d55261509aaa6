// Command explorer is the CLI for the Explorer engine.
//
// Usage:
//
//	explorer serve --config config.yaml
//	explorer explore --config config.yaml -w research "solar panel efficiency"
//	explorer purge --config config.yaml research
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API server."`
	Explore  ExploreCmd  `cmd:"" help:"Run one explore pass from the command line."`
	Purge    PurgeCmd    `cmd:"" help:"Delete every stored chunk in a workspace."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("Explorer version %s\n", version)
	return nil
}

// printBanner prints the startup banner on terminals.
func printBanner() {
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			return
		}
	} else {
		return
	}

	cyan := "\033[36m"
	reset := "\033[0m"

	banner := `
█▀▀ ▀▄▀ █▀█ █   █▀█ █▀█ █▀▀ █▀█
██▄ █ █ █▀▀ █▄▄ █▄█ █▀▄ ██▄ █▀▄
`
	fmt.Printf("%s%s%s\n", cyan, banner, reset)
}

// shouldShowBanner reports whether the invocation runs the long-lived
// server, the only command worth a banner.
func shouldShowBanner(args []string) bool {
	for _, arg := range args[1:] {
		if arg == "serve" {
			return true
		}
	}
	return false
}

func main() {
	if shouldShowBanner(os.Args) {
		printBanner()
	}

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("explorer"),
		kong.Description("Explorer - web exploration and retrieval engine"),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
