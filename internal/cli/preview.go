package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/pagecraft/internal/config"
	"github.com/dshills/pagecraft/internal/editor"
	"github.com/dshills/pagecraft/internal/logging"
	"github.com/dshills/pagecraft/internal/preview"
	"github.com/dshills/pagecraft/internal/script"
)

// previewCommand creates the preview command for editing a scene in the
// terminal.
func (c *CLI) previewCommand() *cobra.Command {
	var (
		scaleX, scaleY float64
		scriptPath     string
		output         string
		watch          bool
	)

	cmd := &cobra.Command{
		Use:   "preview <scene.yaml>",
		Short: "Preview and edit a scene in the terminal",
		Long: `Preview and edit a scene in the terminal.

Click to select, Shift-click to extend, Ctrl-click to toggle and drag to
move; dragging on empty canvas draws a marquee. Keys:

  arrows  nudge (Shift: 10px)     u / U   undo / redo
  1-6     align l/ch/r/t/cv/b     7 / 8   distribute h / v
  g / G   group / ungroup         d       duplicate
  l / L   lock / unlock           h / H   hide / show
  ] / [   front / back            Del     delete
  a       select all              Esc     cancel / clear
  q       quit

With --watch, edits to the config file apply to the running session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPreview(cmd.Context(), args[0], scriptPath, output, watch,
				preview.NewPainter(preview.WithScale(scaleX, scaleY)))
		},
	}

	cmd.Flags().Float64Var(&scaleX, "scale-x", preview.DefaultScaleX, "canvas pixels per column")
	cmd.Flags().Float64Var(&scaleY, "scale-y", preview.DefaultScaleY, "canvas pixels per row")
	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "Lua script to run before previewing")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the edited scene here on quit")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload the config file when it changes")

	return cmd
}

func (c *CLI) runPreview(ctx context.Context, scenePath, scriptPath, output string, watch bool, painter *preview.Painter) error {
	logger := logging.FromContext(ctx)

	session, err := c.openSession(ctx, scenePath)
	if err != nil {
		return err
	}
	defer session.Close()

	if scriptPath != "" {
		st := script.New(session, script.WithLogger(logging.Component(logger, "script")))
		err := st.DoFile(ctx, scriptPath)
		st.Close()
		if err != nil {
			return fmt.Errorf("run script: %w", err)
		}
	}

	if watch && c.configPath != "" {
		stop, err := c.watchConfig(session)
		if err != nil {
			return err
		}
		defer stop()
	}

	if err := preview.Show(ctx, session, preview.WithPainter(painter), preview.WithLogger(logger)); err != nil {
		return err
	}

	if output == "" {
		return nil
	}
	session.History.Flush()
	return writeScene(session.Scene, output, nil)
}

// watchConfig applies config file changes to session until stop is called.
func (c *CLI) watchConfig(session *editor.Session) (stop func(), err error) {
	w, err := config.NewWatcher(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	w.OnChange(session.ApplyConfig)
	return func() { _ = w.Close() }, nil
}
