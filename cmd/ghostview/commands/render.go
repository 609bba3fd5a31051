package commands

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spherical/ghostview/cmd/ghostview/ui"
	"github.com/spherical/ghostview/internal/domain"
	"github.com/spherical/ghostview/internal/session"
)

func newRenderCmd() *cobra.Command {
	var (
		first  int
		last   int
		zoom   float64
		noAA   bool
		thumbs bool
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "render <in>",
		Short: "Render pages to PNG files through the display device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", outDir, err)
			}

			bars := ui.NewStageBars(os.Stderr)
			s := session.New(a.runner, session.ConfigFrom(a.cfg.Render),
				session.WithCache(a.renderCache()),
				session.WithLogger(a.logger),
				session.WithProgress(func(p domain.Progress) {
					bars.Set(string(p.Task), p.Percent)
				}),
			)
			defer s.Close()

			err = s.Open(ctx, args[0], session.Options{Distill: true, SkipThumbnails: !thumbs})
			if err != nil {
				bars.Wait()
				return err
			}
			if cmd.Flags().Changed("zoom") {
				s.SetZoom(zoom)
			}
			s.SetAntialias(!noAA)

			if last <= 0 {
				last = s.PageCount()
			}
			pages, err := s.RenderPages(ctx, first, last)
			bars.Wait()
			if err != nil {
				return err
			}

			for _, p := range s.Thumbnails() {
				if err := writePNG(filepath.Join(outDir, fmt.Sprintf("thumb-%03d.png", p.Number)), p.Image); err != nil {
					return err
				}
			}
			for _, p := range pages {
				if err := writePNG(filepath.Join(outDir, fmt.Sprintf("page-%03d.png", p.Number)), p.Image); err != nil {
					return err
				}
			}
			ui.Success("Rendered %d pages of %d at zoom %.2f into %s", len(pages), s.PageCount(), s.Zoom(), outDir)
			return nil
		},
	}
	cmd.Flags().IntVar(&first, "first", 1, "first page")
	cmd.Flags().IntVar(&last, "last", 0, "last page (default: last page of the document)")
	cmd.Flags().Float64Var(&zoom, "zoom", 1, "zoom factor, 1 is 72 dpi")
	cmd.Flags().BoolVar(&noAA, "no-aa", false, "disable text and graphics antialiasing")
	cmd.Flags().BoolVar(&thumbs, "thumbs", false, "also write thumbnails")
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory")
	return cmd
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
