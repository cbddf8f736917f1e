package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/pagecraft/internal/scene"
)

// inspectCommand creates the inspect command for printing a scene tree.
func (c *CLI) inspectCommand() *cobra.Command {
	var (
		root  string
		match string
	)

	cmd := &cobra.Command{
		Use:   "inspect <scene.yaml>",
		Short: "Print the element tree of a scene",
		Long: `Print the element tree of a scene, back to front.

Each line shows the element id, kind, name and canvas-local rect, followed
by its locked and hidden flags. --id prints one subtree; --match prints the
elements whose id or name matches a glob such as "btn-*".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := c.readScene(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch {
			case match != "":
				ids, err := sc.Find(match)
				if err != nil {
					return err
				}
				for _, id := range ids {
					if err := printElement(out, sc, id, 0); err != nil {
						return err
					}
				}
				return nil

			case root != "":
				if _, ok := sc.Get(root); !ok {
					return notFound(sc, root)
				}
				if err := printElement(out, sc, root, 0); err != nil {
					return err
				}
				return printTree(out, sc, root, 1)
			}

			canvas := sc.Canvas()
			if _, err := fmt.Fprintf(out, "canvas %gx%g, %d elements\n", canvas.W, canvas.H, sc.Len()); err != nil {
				return err
			}
			return printTree(out, sc, scene.RootID, 0)
		},
	}

	cmd.Flags().StringVar(&root, "id", "", "print only the subtree of this element")
	cmd.Flags().StringVarP(&match, "match", "m", "", "print only elements matching this glob")

	return cmd
}

// notFound reports an unknown id with the closest known ids.
func notFound(sc *scene.Scene, id string) error {
	if hints := sc.Suggest(id, 3); len(hints) > 0 {
		return fmt.Errorf("element %q not found (did you mean %s?)", id, strings.Join(hints, ", "))
	}
	return fmt.Errorf("element %q not found", id)
}

// printTree prints the descendants of parent, indented from depth.
func printTree(w io.Writer, sc *scene.Scene, parent string, depth int) error {
	for _, id := range sc.Children(parent) {
		if err := printElement(w, sc, id, depth); err != nil {
			return err
		}
		if err := printTree(w, sc, id, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func printElement(w io.Writer, sc *scene.Scene, id string, depth int) error {
	el, ok := sc.Get(id)
	if !ok {
		return nil
	}
	abs, _ := sc.AbsoluteRect(id)

	var b strings.Builder
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(el.ID)
	b.WriteString(" ")
	b.WriteString(string(el.Kind))
	if el.Name != "" {
		fmt.Fprintf(&b, " %q", el.Name)
	}
	b.WriteString(" ")
	b.WriteString(abs.String())
	if el.Locked {
		b.WriteString(" locked")
	}
	if el.Hidden {
		b.WriteString(" hidden")
	}
	_, err := fmt.Fprintln(w, b.String())
	return err
}
