// Package cli implements the pagecraft command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dshills/pagecraft/internal/config"
	"github.com/dshills/pagecraft/internal/editor"
	"github.com/dshills/pagecraft/internal/logging"
	"github.com/dshills/pagecraft/internal/scene"
)

const appName = "pagecraft"

// Build information, set by the main package from ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// CLI holds state shared by all commands.
type CLI struct {
	errOut io.Writer

	configPath string
	verbose    bool
	cfg        config.Config
}

// New creates a CLI that logs to errOut.
func New(errOut io.Writer) *CLI {
	return &CLI{errOut: errOut, cfg: config.Default()}
}

// RootCommand creates the root command with every subcommand registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Pagecraft edits page-builder scenes",
		Long: `Pagecraft is a direct-manipulation editing engine for page-builder scenes.

Scenes are YAML documents of positioned elements and groups. Commands run
Lua scripts against a scene, preview it in the terminal and print its
element tree.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c.cfg = cfg

			level := logging.ParseLevel(cfg.Log.Level)
			if c.verbose {
				level = log.DebugLevel
			}
			cmd.SetContext(logging.WithLogger(cmd.Context(), logging.New(c.errOut, level)))
			return nil
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("%s %s\ncommit: %s\nbuilt: %s\n", appName, version, commit, date))
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", defaultConfigPath(), "configuration file (TOML)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.runCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.configCommand())

	return root
}

// defaultConfigPath returns pagecraft.toml in the user config directory, or
// empty when there is none.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appName, appName+".toml")
}

// readScene loads a scene document. Documents without a canvas size use
// the configured one.
func (c *CLI) readScene(path string) (*scene.Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene: %w", err)
	}
	defer f.Close()

	sc, err := scene.ReadYAML(f, scene.WithCanvas(c.cfg.Canvas.Width, c.cfg.Canvas.Height))
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}
	return sc, nil
}

// openSession loads a scene and starts an editing session on it.
func (c *CLI) openSession(ctx context.Context, path string) (*editor.Session, error) {
	sc, err := c.readScene(path)
	if err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)
	logger.Debug("scene loaded", "path", path, "elements", sc.Len())
	return editor.New(sc, c.cfg, editor.WithLogger(logger)), nil
}

// writeScene writes the scene to path, or to out when path is empty.
func writeScene(sc *scene.Scene, path string, out io.Writer) (err error) {
	if path == "" {
		return sc.WriteYAML(out)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	if err := sc.WriteYAML(f); err != nil {
		return fmt.Errorf("write scene %s: %w", path, err)
	}
	return nil
}
