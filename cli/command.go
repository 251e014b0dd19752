// Package cli builds a small command registry on top of urfave/cli/v3 for
// coretable's two entrypoints. There is no permission or flag-validation
// middleware layer: coretable has no user or auth model, so there is
// nothing for a permission checker to check.
package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

// CommandBuilder is the interface every registered command implements.
type CommandBuilder interface {
	Name() string
	Description() string
	Usage() string
	Category() string
	Flags() []cli.Flag
	Subcommands() []CommandBuilder
	Build() *cli.Command
}

// BaseCommand is a CommandBuilder built up with a fluent setter chain.
type BaseCommand struct {
	name        string
	description string
	usage       string
	category    string
	flags       []cli.Flag
	subcommands []CommandBuilder
	action      func(ctx context.Context, cmd *cli.Command) error
}

// NewBaseCommand creates a command builder named name.
func NewBaseCommand(name, description string) *BaseCommand {
	return &BaseCommand{name: name, description: description}
}

func (b *BaseCommand) Name() string                  { return b.name }
func (b *BaseCommand) Description() string           { return b.description }
func (b *BaseCommand) Usage() string                 { return b.usage }
func (b *BaseCommand) Category() string              { return b.category }
func (b *BaseCommand) Flags() []cli.Flag             { return b.flags }
func (b *BaseCommand) Subcommands() []CommandBuilder { return b.subcommands }

func (b *BaseCommand) SetUsage(usage string) *BaseCommand {
	b.usage = usage
	return b
}

func (b *BaseCommand) SetCategory(category string) *BaseCommand {
	b.category = category
	return b
}

func (b *BaseCommand) AddFlag(flag cli.Flag) *BaseCommand {
	b.flags = append(b.flags, flag)
	return b
}

func (b *BaseCommand) AddSubcommand(sub CommandBuilder) *BaseCommand {
	b.subcommands = append(b.subcommands, sub)
	return b
}

func (b *BaseCommand) SetAction(action func(ctx context.Context, cmd *cli.Command) error) *BaseCommand {
	b.action = action
	return b
}

// Build constructs the urfave/cli/v3 command tree.
func (b *BaseCommand) Build() *cli.Command {
	cmd := &cli.Command{
		Name:        b.name,
		Usage:       b.usage,
		Description: b.description,
		Category:    b.category,
		Flags:       b.flags,
		Action:      b.action,
	}
	if len(b.subcommands) > 0 {
		cmds := make([]*cli.Command, 0, len(b.subcommands))
		for _, sub := range b.subcommands {
			cmds = append(cmds, sub.Build())
		}
		cmd.Commands = cmds
	}
	return cmd
}

// Registry collects CommandBuilders and exposes them as urfave/cli/v3
// commands.
type Registry struct {
	builders []CommandBuilder
}

// NewRegistry returns an empty command registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds builder to the registry.
func (r *Registry) Register(builder CommandBuilder) {
	r.builders = append(r.builders, builder)
}

// Commands builds every registered command.
func (r *Registry) Commands() []*cli.Command {
	cmds := make([]*cli.Command, 0, len(r.builders))
	for _, b := range r.builders {
		cmds = append(cmds, b.Build())
	}
	return cmds
}
