package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/ghostview/cmd/ghostview/ui"
	"github.com/spherical/ghostview/internal/printing"
)

func newPrintCmd() *cobra.Command {
	var (
		first   int
		last    int
		printer string
		device  string
		toDir   string
		title   string
	)
	cmd := &cobra.Command{
		Use:   "print <in>",
		Short: "Render a document and spool it to a printer page by page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var spooler printing.Spooler = printing.CommandSpooler{
				Command: a.cfg.Print.Command,
				Printer: a.cfg.Print.Printer,
			}
			if printer != "" {
				spooler = printing.CommandSpooler{Command: a.cfg.Print.Command, Printer: printer}
			}
			if toDir != "" {
				spooler = printing.DirSpooler{Dir: toDir}
			}
			if device == "" {
				device = a.cfg.Print.Device
			}

			pipeline := printing.NewPipeline(a.runner, spooler,
				printing.WithDevice(device),
				printing.WithTempDir(a.cfg.Paths.TempDir),
				printing.WithLogger(a.logger),
			)

			bar := ui.NewProgressBar("Rendering")
			stage := printing.StageRender
			report, err := pipeline.Print(ctx, args[0], printing.Request{
				Title:     title,
				FirstPage: first,
				LastPage:  last,
				OnProgress: func(p printing.Progress) {
					if p.Stage != stage {
						stage = p.Stage
						bar.Set(100)
						bar.Describe("Spooling")
						bar.Set(0)
					}
					bar.Set(p.Percent)
				},
			})
			if err != nil {
				return err
			}
			bar.Finish()
			ui.Success("Spooled %d pages in %s", len(report.Pages), ui.FormatDuration(report.Duration))
			return nil
		},
	}
	cmd.Flags().IntVar(&first, "first", 0, "first page")
	cmd.Flags().IntVar(&last, "last", 0, "last page")
	cmd.Flags().StringVar(&printer, "printer", "", "printer name (default from config or PRINTER)")
	cmd.Flags().StringVar(&device, "device", "", "intermediate device (default from config)")
	cmd.Flags().StringVar(&toDir, "to-dir", "", "write pages to a directory instead of printing")
	cmd.Flags().StringVar(&title, "title", "", "job title (default: file name)")
	return cmd
}
