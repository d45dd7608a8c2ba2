package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/tandem"
	"github.com/aretw0/tandem/pkg/core"
)

// resolveRoot returns --root, or the nearest workspace above the working
// directory, or the working directory itself.
func resolveRoot() string {
	if rootDir != "" {
		return rootDir
	}
	wd, err := os.Getwd()
	if err != nil {
		fatal("Failed to get working directory", err)
	}
	if found, err := tandem.FindRoot(wd); err == nil {
		return found
	}
	return wd
}

func openWorkspace(ctx context.Context, opts ...tandem.Option) *tandem.Workspace {
	base := []tandem.Option{
		tandem.WithLogger(slog.Default()),
		tandem.WithRecorder(recorder),
	}
	ws, err := tandem.Open(ctx, resolveRoot(), append(base, opts...)...)
	if err != nil {
		fatal("Failed to open workspace", err)
	}
	return ws
}

func requireSession() string {
	if sessionID == "" {
		fatal("Missing session", fmt.Errorf("pass --session or set TANDEM_SESSION"))
	}
	return sessionID
}

// parseType accepts any context type; the ledger and last-writer-wins merge
// handle types without a canonical document.
func parseType(arg string) core.ContextType {
	if arg == "" {
		fatal("Invalid context type", fmt.Errorf("empty"))
	}
	return core.ContextType(arg)
}

func documentType(arg string) core.ContextType {
	t := parseType(arg)
	if !t.Known() {
		fatal("Invalid context type", fmt.Errorf("%w: %s (want one of %v)", core.ErrUnknownType, t, core.DocumentTypes))
	}
	return t
}

func readInput(path string) string {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		fatal("Failed to read "+path, err)
	}
	return string(data)
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fatal("Error encoding JSON", err)
	}
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
