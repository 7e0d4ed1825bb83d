package commands

import (
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Show engine statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		stats := e.Stats()
		cfg := loadConfigOrDefault()

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"metric", "value"})
		table.Append([]string{"keys", strconv.Itoa(stats.Keys)})
		table.Append([]string{"total_chunks", strconv.Itoa(stats.TotalChunks)})
		table.Append([]string{"resident_chunks", strconv.Itoa(stats.ResidentChunks)})
		table.Append([]string{"current_chunk", strconv.Itoa(stats.CurrentChunk)})
		table.Append([]string{"synced_chunk", strconv.Itoa(stats.SyncedChunk)})
		table.Append([]string{"chunk_size", cfg.Engine.ChunkSize.String()})
		table.Append([]string{"max_journal", strconv.Itoa(cfg.Engine.MaxJournal)})
		table.Append([]string{"resident_budget", cfg.Engine.ResidentBudget.String()})
		table.Render()
		return nil
	},
}
