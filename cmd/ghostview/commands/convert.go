package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/ghostview/cmd/ghostview/ui"
	"github.com/spherical/ghostview/internal/job"
)

func newConvertCmd() *cobra.Command {
	var (
		device     string
		output     string
		first      int
		last       int
		resolution int
		width      float64
		height     float64
		fit        bool
	)
	cmd := &cobra.Command{
		Use:   "convert <in>",
		Short: "Render a document with an output device (xpswrite by default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			if output == "" {
				output = strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)) + job.OutputExt(device)
			}
			if first > 0 && last > 0 && last < first {
				return fmt.Errorf("--last %d is before --first %d", last, first)
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			e := job.Export{
				Device:       device,
				OutputFile:   output,
				FirstPage:    first,
				LastPage:     last,
				Resolution:   resolution,
				WidthPoints:  width,
				HeightPoints: height,
				FitPage:      fit,
			}
			res, err := runWithEvents(ctx, a, "Converting", in, func(cb job.Callbacks) (string, error) {
				return a.runner.CreateOutput(ctx, in, e, cb)
			})
			if err != nil {
				return err
			}
			ui.Success("Wrote %s in %s", res.OutputFile, ui.FormatDuration(res.Duration))
			return nil
		},
	}
	cmd.Flags().StringVar(&device, "device", job.DefaultExportDevice, "Ghostscript output device")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file; may contain %d for one file per page")
	cmd.Flags().IntVar(&first, "first", 0, "first page")
	cmd.Flags().IntVar(&last, "last", 0, "last page")
	cmd.Flags().IntVarP(&resolution, "resolution", "r", 0, "output resolution in dpi (default from config)")
	cmd.Flags().Float64Var(&width, "width", 0, "media width in points")
	cmd.Flags().Float64Var(&height, "height", 0, "media height in points")
	cmd.Flags().BoolVar(&fit, "fit", false, "scale pages to the media size")
	return cmd
}
