package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/spherical/ghostview/internal/repl"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Run gs command lines interactively",
		Long: `Each line must start with gs and runs on a fresh interpreter, e.g.

  gs -dBATCH -sDEVICE=pdfwrite -o out.pdf -f in.ps

Only double quotes group words; backslashes and single quotes are literal.
Type quit or exit to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			opts := []repl.Option{repl.WithPrompt("gs> "), repl.WithLogger(a.logger)}
			if noColor {
				opts = append(opts, repl.WithNoColor())
			}
			return repl.New(a.runner, os.Stdin, os.Stdout, opts...).Run(cmd.Context())
		},
	}
}
