package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spherical/ghostview/cmd/ghostview/ui"
	"github.com/spherical/ghostview/internal/storage"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently finished jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := storage.OpenConfig(ctx, cfg.History)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("job history is disabled; set history.driver or DATABASE_URL")
			}
			defer store.Close()

			entries, err := store.History().List(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				ui.Info("No jobs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.FinishedAt.Local().Format("2006-01-02 15:04:05"),
					string(e.Task),
					string(e.Status),
					strconv.Itoa(e.ReturnCode),
					ui.FormatDuration(e.Duration),
					e.InputFile,
				})
			}
			ui.Table([]string{"FINISHED", "TASK", "STATUS", "CODE", "TIME", "INPUT"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of jobs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
