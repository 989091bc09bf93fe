// Package cli implements the tiermem CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/m-mizutani/clog"
	"github.com/spf13/cobra"

	"github.com/agentstack/tiermem/internal/consolidate"
	"github.com/agentstack/tiermem/internal/coordinator"
	"github.com/agentstack/tiermem/internal/longterm"
	"github.com/agentstack/tiermem/internal/shortterm"
)

var (
	dbPath    string
	statePath string
	agentFlag string
	debugFlag bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "tiermem",
	Short: "Tiered memory for AI agents",
	Long: "Tiered agent memory: an ephemeral short-term store, a durable " +
		"SQLite-backed long-term store, and a consolidation engine between them.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $TIERMEM_DB or ~/.tiermem/memory.db)")
	RootCmd.PersistentFlags().StringVar(&statePath, "state", "", "Short-term state path (default: alongside the database)")
	RootCmd.PersistentFlags().StringVarP(&agentFlag, "agent", "a", "", "Agent id (default: $TIERMEM_AGENT or \"default\")")
	RootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("TIERMEM_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tiermem", "memory.db")
}

func getStatePath() string {
	if statePath != "" {
		return statePath
	}
	return filepath.Join(filepath.Dir(getDBPath()), "shortterm.json")
}

func getAgentID() string {
	if agentFlag != "" {
		return agentFlag
	}
	if env := os.Getenv("TIERMEM_AGENT"); env != "" {
		return env
	}
	return "default"
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debugFlag {
		level = slog.LevelDebug
	}
	handler := clog.New(
		clog.WithWriter(os.Stderr),
		clog.WithLevel(level),
		clog.WithColor(true),
	)
	return slog.New(handler)
}

// env bundles the wired subsystem for one CLI invocation. Most commands
// go through the coordinator; operational commands (rm, export, import)
// reach the long-term store directly.
type env struct {
	co     *coordinator.Coordinator
	stm    *shortterm.Store
	ltm    *longterm.SQLiteStore
	logger *slog.Logger
}

// openEnv wires stores, engine, and coordinator, restoring the short-term
// snapshot from disk.
func openEnv() (*env, error) {
	logger := newLogger()

	stm := shortterm.New(shortterm.WithLogger(logger))
	if err := stm.LoadSnapshot(getStatePath()); err != nil {
		return nil, err
	}

	ltm, err := longterm.NewSQLiteStore(getDBPath(), longterm.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	engine := consolidate.New(stm, ltm, consolidate.WithLogger(logger))
	co := coordinator.New(stm, ltm, engine, coordinator.WithLogger(logger))

	return &env{co: co, stm: stm, ltm: ltm, logger: logger}, nil
}

// Close persists the short-term snapshot and releases the database.
func (e *env) Close() {
	if err := e.stm.SaveSnapshot(getStatePath()); err != nil {
		e.logger.Warn("failed to save short-term state", "error", err)
	}
	e.ltm.Close()
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
