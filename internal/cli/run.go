package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/pagecraft/internal/logging"
	"github.com/dshills/pagecraft/internal/script"
)

// runCommand creates the run command for applying a Lua script to a scene.
func (c *CLI) runCommand() *cobra.Command {
	var (
		output  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <scene.yaml> <script.lua>",
		Short: "Run a Lua script against a scene",
		Long: `Run a Lua script against a scene and write the resulting scene.

The script drives an editing session through the global "editor" table:
selection, alignment, grouping, batch edits, pointer gestures and undo.
The resulting scene is written to --output, or to stdout. Script output
from print goes to stderr when the scene is written to stdout.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			printOut := cmd.OutOrStdout()
			if output == "" {
				printOut = cmd.ErrOrStderr()
			}
			return c.runScript(cmd.Context(), args[0], args[1], output, timeout, cmd.OutOrStdout(), printOut)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().DurationVar(&timeout, "timeout", script.DefaultTimeout, "script timeout")

	return cmd
}

// runScript loads the scene, runs the script and writes the result.
func (c *CLI) runScript(ctx context.Context, scenePath, scriptPath, output string, timeout time.Duration, out, printOut io.Writer) error {
	logger := logging.FromContext(ctx)

	session, err := c.openSession(ctx, scenePath)
	if err != nil {
		return err
	}

	st := script.New(session,
		script.WithOutput(printOut),
		script.WithTimeout(timeout),
		script.WithLogger(logging.Component(logger, "script")),
	)
	defer st.Close()

	if err := st.DoFile(ctx, scriptPath); err != nil {
		session.Close()
		return fmt.Errorf("run script: %w", err)
	}
	session.Close()

	logger.Info("script applied",
		"script", scriptPath,
		"calls", st.Calls(),
		"history", session.History.Len(),
		"elements", session.Scene.Len())

	return writeScene(session.Scene, output, out)
}
