// Package cli implements the mixer's offline administration subcommands:
// inspecting and editing persisted settings without a running server.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/gitter-badger/hifi/internal/store"
)

// Version is the mixer build version, set by main via -ldflags or left at
// its default for local builds.
var Version = "dev"

func openStore(dbPath string) *store.Store {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	st, err := store.New(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	return st
}

// Run handles subcommand execution. Returns true if a subcommand was
// handled, false if args names something the caller should treat as
// "not a CLI invocation" (e.g. main should fall through to serving).
func Run(args []string, dbPath string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("hifi mixer %s\n", Version)
		return true
	case "status":
		return status(dbPath)
	case "settings":
		return settings(args[1:], dbPath)
	default:
		return false
	}
}

func status(dbPath string) bool {
	st := openStore(dbPath)
	defer st.Close()

	name, ok, _ := st.GetSetting(store.KeyServerName)
	if !ok {
		name = "(unnamed)"
	}
	zone, hasZone, _ := st.GetSetting(store.KeyUnattenuatedZone)

	fmt.Printf("Server: %s\n", name)
	fmt.Printf("Database: %s\n", dbPath)
	if hasZone {
		fmt.Printf("Unattenuated zone: %s\n", zone)
	} else {
		fmt.Println("Unattenuated zone: (none)")
	}
	fmt.Printf("Version: %s\n", Version)
	return true
}

func settings(args []string, dbPath string) bool {
	st := openStore(dbPath)
	defer st.Close()

	if len(args) == 0 || args[0] == "list" {
		all, err := st.AllSettings()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(all, "", "  ")
		fmt.Println(string(out))
		return true
	}

	if args[0] == "set" && len(args) > 2 {
		key, value := args[1], args[2]
		if err := st.SetSetting(key, value); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return true
	}

	fmt.Fprintf(os.Stderr, "Usage: mixer settings [list|set <key> <value>]\n")
	os.Exit(1)
	return true
}
