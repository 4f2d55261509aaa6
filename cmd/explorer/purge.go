package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/introlix/explorer/pkg/config"
	"github.com/introlix/explorer/pkg/runtime"
)

// PurgeCmd deletes every stored chunk in a workspace.
type PurgeCmd struct {
	Workspace string `arg:"" help:"Workspace to purge."`
	Yes       bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *PurgeCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for purge")
	}
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !c.Yes && !confirmPurge(c.Workspace) {
		fmt.Println("Aborted.")
		return nil
	}

	ctx := context.Background()
	rt, err := runtime.NewWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Engine().PurgeWorkspace(ctx, c.Workspace); err != nil {
		return err
	}

	fmt.Printf("Workspace %q purged.\n", c.Workspace)
	return nil
}

// confirmPurge prompts on the terminal. A non-interactive stdin counts as
// a refusal, so scripts have to pass --yes explicitly.
func confirmPurge(workspace string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "stdin is not a terminal; pass --yes to purge without confirmation")
		return false
	}

	fmt.Printf("Delete every chunk in workspace %q? [y/N]: ", workspace)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
