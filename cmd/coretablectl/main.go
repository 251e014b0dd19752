// Command coretablectl is the interactive text client: a REPL over
// exit/flush/stats/compact and arbitrary query text. It talks directly to a
// lock-wrapped engine rather than over the RPC transport.
//
// Every line is dispatched through a urfave/cli/v3 command registry
// (cli.Registry): each REPL line is split into fields and run as `coretablectl <fields...>` against a root
// command whose subcommands are the registered builders.
//
// When stdout is a terminal it runs a bubbletea/lipgloss line-editing REPL;
// otherwise (piped input, scripts, tests) it falls back to a plain
// bufio.Scanner loop so coretablectl stays usable in non-interactive
// contexts.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	clilib "github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/colin353/largetable"
	clipkg "github.com/colin353/largetable/cli"
	"github.com/colin353/largetable/cli/commands"
	"github.com/colin353/largetable/config"
	"github.com/colin353/largetable/lock"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "coretablectl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	engine, err := largetable.Open(largetable.Config{
		Directory:         cfg.DataDirectory,
		MemTableSizeLimit: cfg.MemTableSizeLimit,
		DiskTableLimit:    cfg.DiskTableLimit,
	})
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer engine.Close()

	serialized := lock.Wrap(engine)
	root := buildRootCommand(serialized)

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return runInteractive(root)
	}
	return runScripted(root)
}

// buildRootCommand assembles the registered commands into one urfave/cli/v3
// root so a REPL line can be run as `coretablectl <line fields...>`.
func buildRootCommand(engine *lock.Engine) *clilib.Command {
	registry := clipkg.NewRegistry()
	registry.Register(commands.Exit())
	registry.Register(commands.Flush(engine))
	registry.Register(commands.Stats(engine))
	registry.Register(commands.Compact(engine))
	registry.Register(commands.Query(engine))

	return &clilib.Command{
		Name:     "coretablectl",
		Commands: registry.Commands(),
	}
}

// dispatch runs one REPL line through root and captures whatever the
// command wrote to its Writer.
func dispatch(ctx context.Context, root *clilib.Command, line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	var out strings.Builder
	root.Writer = &out
	args := append([]string{"coretablectl"}, strings.Fields(line)...)
	err := root.Run(ctx, args)
	return strings.TrimRight(out.String(), "\n"), err
}

func runScripted(root *clilib.Command) error {
	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out, err := dispatch(ctx, root, scanner.Text())
		if errors.Is(err, commands.ErrExit) {
			return nil
		}
		if out != "" {
			fmt.Println(out)
		}
		if err != nil && !errors.Is(err, commands.ErrExit) {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return scanner.Err()
}

func runInteractive(root *clilib.Command) error {
	p := tea.NewProgram(newReplModel(root))
	_, err := p.Run()
	return err
}

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	resultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type replModel struct {
	root    *clilib.Command
	input   string
	history []string
}

func newReplModel(root *clilib.Command) replModel {
	return replModel{root: root}
}

func (m replModel) Init() tea.Cmd { return nil }

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter:
		line := m.input
		m.input = ""
		out, err := dispatch(context.Background(), m.root, line)
		m.history = append(m.history, promptStyle.Render("coretable> "+line))
		switch {
		case errors.Is(err, commands.ErrExit):
			return m, tea.Quit
		case err != nil:
			m.history = append(m.history, errorStyle.Render(err.Error()))
		case out != "":
			m.history = append(m.history, resultStyle.Render(out))
		}
		return m, nil
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil
	default:
		m.input += keyMsg.String()
		return m, nil
	}
}

func (m replModel) View() string {
	var b strings.Builder
	for _, line := range m.history {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(promptStyle.Render("coretable> ") + m.input)
	return b.String()
}
