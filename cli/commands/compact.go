package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	clipkg "github.com/colin353/largetable/cli"
	"github.com/colin353/largetable/lock"
)

// Compact builds the `compact` command: force a major compaction
// independent of the disktable_limit trigger.
func Compact(engine *lock.Engine) clipkg.CommandBuilder {
	return clipkg.NewBaseCommand("compact", "merge all disktables into one").
		SetAction(func(ctx context.Context, cmd *cli.Command) error {
			if err := engine.Compact(); err != nil {
				fmt.Fprintf(cmd.Writer, "compact failed: %v\n", err)
				return nil
			}
			fmt.Fprintln(cmd.Writer, "compaction complete")
			return nil
		})
}
