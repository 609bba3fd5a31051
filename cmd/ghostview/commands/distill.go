package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/ghostview/cmd/ghostview/ui"
	"github.com/spherical/ghostview/internal/domain"
	"github.com/spherical/ghostview/internal/job"
	"github.com/spherical/ghostview/internal/stream"
)

func newDistillCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "distill <in>",
		Short: "Convert PostScript, XPS or PCL to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			if output == "" {
				output = strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)) + ".pdf"
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			res, err := runWithEvents(ctx, a, "Distilling", in, func(cb job.Callbacks) (string, error) {
				return a.runner.Distill(ctx, in, cb)
			})
			if err != nil {
				return err
			}

			tmp := &job.TempFile{Path: res.OutputFile}
			defer tmp.Remove()
			if err := tmp.SaveAs(output); err != nil {
				return fmt.Errorf("save %s: %w", output, err)
			}
			ui.Success("Wrote %s in %s", output, ui.FormatDuration(res.Duration))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output PDF (default <in>.pdf)")
	return cmd
}

// runWithEvents runs a job through the stream service and draws its
// progress. Engine output is shown with --verbose.
func runWithEvents(ctx context.Context, a *app, label, in string, start stream.StartFunc) (domain.Result, error) {
	events := make(chan domain.StreamEvent, 100)
	svc := stream.NewService(a.runner, a.logger)
	bar := ui.NewProgressBar(label)

	type outcome struct {
		res domain.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := svc.Process(ctx, in, start, events)
		close(events)
		done <- outcome{res, err}
	}()

	for e := range events {
		switch e.Type {
		case domain.EventProgress:
			bar.Set(e.Percent)
		case domain.EventOutput:
			if out, ok := e.Payload.(stream.Output); ok && (verbose || out.Stderr) {
				fmt.Print(out.Text)
			}
		case domain.EventComplete:
			bar.Finish()
		}
	}
	o := <-done
	return o.res, o.err
}
