package commands

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	clipkg "github.com/colin353/largetable/cli"
)

// ErrExit is returned by the exit command's Action; the REPL driving the
// command registry checks for it with errors.Is and stops the read loop.
var ErrExit = errors.New("exit requested")

// Exit builds the `exit` command.
func Exit() clipkg.CommandBuilder {
	return clipkg.NewBaseCommand("exit", "close the client").
		SetAction(func(ctx context.Context, cmd *cli.Command) error {
			return ErrExit
		})
}
