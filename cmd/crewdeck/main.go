// cmd/crewdeck/main.go
//
// This is the entry point for the crewdeck TUI.
// When you run `crewdeck` from any directory, this is what executes.
//
// Flow:
// 1. Initialize the .crewdeck folder (config + logs)
// 2. Build the application model
// 3. Hand it to bubbletea and block until the user quits

package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tallgrass/crewdeck/internal/config"
	"github.com/tallgrass/crewdeck/internal/tui"
)

func main() {
	// The current working directory is the workspace the session belongs to.
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
		os.Exit(1)
	}

	if err := config.InitCrewdeckDir(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .crewdeck directory: %v\n", err)
		os.Exit(1)
	}

	app, err := tui.NewApp(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting crewdeck: %v\n", err)
		os.Exit(1)
	}

	// tea.NewProgram creates a new bubbletea application.
	p := tea.NewProgram(
		app,
		tea.WithAltScreen(), // Use alternate screen buffer (like vim does)
	)

	// Run blocks until the user quits.
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
