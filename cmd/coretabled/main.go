// Command coretabled is the server entrypoint: it loads configuration,
// opens the engine, wraps it in the single mutual-exclusion lock, and
// serves the RPC collaborator. There is no permission checker or flag
// validator to set up, since coretable has no auth model.
package main

import (
	"fmt"
	"os"

	"github.com/colin353/largetable"
	"github.com/colin353/largetable/config"
	"github.com/colin353/largetable/internal/observ"
	"github.com/colin353/largetable/lock"
	"github.com/colin353/largetable/rpc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "coretabled: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	observ.Init(observ.Config{Level: "info", Format: "console", Output: "stderr"})
	log := observ.Component("coretabled")

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
	server := rpc.New(serialized)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info("listening", "addr", addr, "datadirectory", cfg.DataDirectory)
	return server.Listen(addr)
}
