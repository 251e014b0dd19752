package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colin353/largetable"
	clipkg "github.com/colin353/largetable/cli"
	"github.com/colin353/largetable/lock"
	"github.com/colin353/largetable/query"
)

// Query builds the `query` command: arbitrary query text, parsed against
// ParseQuery and executed directly against the engine.
func Query(engine *lock.Engine) clipkg.CommandBuilder {
	return clipkg.NewBaseCommand("query", "run select/insert/update against a row").
		SetUsage("query <select|insert|update> <row> ...").
		SetAction(func(ctx context.Context, cmd *cli.Command) error {
			line := strings.Join(cmd.Args().Slice(), " ")
			req, err := ParseQuery(line)
			if err != nil {
				fmt.Fprintf(cmd.Writer, "parse error: %v\n", err)
				return nil
			}
			fmt.Fprintln(cmd.Writer, Run(engine, req))
			return nil
		})
}

// Run executes req against engine and renders the result for the CLI:
// every public operation's result variant rendered as a human-readable
// string.
func Run(engine *lock.Engine, req query.Request) string {
	switch req.Kind {
	case query.KindSelect:
		results, err := engine.Select(req.Row, req.Columns, req.Timestamp)
		if err != nil {
			return err.Error()
		}
		parts := make([]string, len(results))
		for i, r := range results {
			if r.Found {
				parts[i] = string(r.Value)
			} else {
				parts[i] = "<none>"
			}
		}
		return strings.Join(parts, ", ")

	case query.KindInsert:
		if err := engine.Insert(req.Row, toEngineUpdates(req.Updates), req.Timestamp); err != nil {
			return err.Error()
		}
		return "done"

	case query.KindUpdate:
		if err := engine.Update(req.Row, toEngineUpdates(req.Updates), req.Timestamp); err != nil {
			return err.Error()
		}
		return "done"

	default:
		return fmt.Sprintf("unrecognized query kind %q", req.Kind)
	}
}

func toEngineUpdates(cvs []query.ColumnValue) []largetable.Update {
	updates := make([]largetable.Update, len(cvs))
	for i, cv := range cvs {
		updates[i] = largetable.Update{Column: cv.Column, Value: cv.Value}
	}
	return updates
}
