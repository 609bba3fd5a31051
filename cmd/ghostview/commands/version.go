package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/ghostview/cmd/ghostview/ui"
	"github.com/spherical/ghostview/internal/gsapi"
)

// Version is the ghostview release, set at build time.
var Version = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ghostview and Ghostscript versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("ghostview %s\n", Version)

			lib, err := gsapi.Load(cfg.Engine.LibraryPath)
			if err != nil {
				ui.Warning("Ghostscript not loaded: %v", err)
				return nil
			}
			rev, err := lib.Revision()
			if err != nil {
				return err
			}
			ui.KeyValue("product", rev.Product)
			ui.KeyValue("version", rev.Version())
			ui.KeyValue("revision date", rev.RevisionDate)
			return nil
		},
	}
}
