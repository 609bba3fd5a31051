package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/ghostview/cmd/ghostview/ui"
)

var (
	cfgFile string
	verbose bool
	noColor bool
	libPath string
)

var rootCmd = &cobra.Command{
	Use:   "ghostview",
	Short: "Drive the Ghostscript library: distill, convert, render, print",
	Long: `ghostview loads the Ghostscript shared library and runs jobs against it:
distilling PostScript to PDF, converting to other output devices, rendering
pages to images, spooling to a printer, and an interactive gs prompt.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetNoColor(noColor)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&libPath, "lib", "", "path to the Ghostscript shared library")

	rootCmd.AddCommand(
		newVersionCmd(),
		newPageCountCmd(),
		newDistillCmd(),
		newConvertCmd(),
		newRenderCmd(),
		newPrintCmd(),
		newReplCmd(),
		newServeCmd(),
		newHistoryCmd(),
	)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running job.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
