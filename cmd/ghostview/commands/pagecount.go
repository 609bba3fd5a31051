package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/ghostview/cmd/ghostview/ui"
)

func newPageCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pagecount <file.pdf>",
		Short: "Print the number of pages in a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			spin := ui.NewSpinner("Counting pages")
			spin.Start()
			n, err := a.runner.PageCount(cmd.Context(), args[0])
			spin.Stop()
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
}
