package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	clipkg "github.com/colin353/largetable/cli"
	"github.com/colin353/largetable/lock"
)

// Stats builds the `stats` command, printing the engine's counters
// (memtable size/rows, disktable count/rows, commit log size).
func Stats(engine *lock.Engine) clipkg.CommandBuilder {
	return clipkg.NewBaseCommand("stats", "show engine counters").
		SetAction(func(ctx context.Context, cmd *cli.Command) error {
			stats, err := engine.Stats()
			if err != nil {
				fmt.Fprintf(cmd.Writer, "stats failed: %v\n", err)
				return nil
			}
			fmt.Fprintf(cmd.Writer, "memtable: %d rows, %d bytes\n", stats.MemTableRows, stats.MemTableSize)
			fmt.Fprintf(cmd.Writer, "disktables: %d (index %d)\n", stats.DiskTableCount, stats.DiskTableIndex)
			for i, rows := range stats.DiskTableRows {
				fmt.Fprintf(cmd.Writer, "  disktable %d: %d rows\n", i, rows)
			}
			fmt.Fprintf(cmd.Writer, "commit log: %d bytes\n", stats.CommitLogBytes)
			return nil
		})
}
