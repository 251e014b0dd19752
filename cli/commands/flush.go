package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	clipkg "github.com/colin353/largetable/cli"
	"github.com/colin353/largetable/lock"
)

// Flush builds the `flush` command: an explicit minor compaction.
func Flush(engine *lock.Engine) clipkg.CommandBuilder {
	return clipkg.NewBaseCommand("flush", "flush the memtable to a new disktable").
		SetAction(func(ctx context.Context, cmd *cli.Command) error {
			if err := engine.Flush(); err != nil {
				fmt.Fprintf(cmd.Writer, "flush failed: %v\n", err)
				return nil
			}
			fmt.Fprintln(cmd.Writer, "flush complete")
			return nil
		})
}
