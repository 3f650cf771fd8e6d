// Package main implements patientsim-tui, a terminal client for practicing
// role-play conversations with the simulated patient. The simulator runs
// in-process; transcripts land in the same SQLite store the daemon uses.
//
// Usage:
//
//	# Practice against the built-in case (OPENAI_API_KEY from the environment)
//	patientsim-tui
//
//	# Practice offline against the mock provider
//	PATIENTSIM_MODEL_PROVIDER=mock patientsim-tui
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/hupe1980/patientsim"
	"github.com/hupe1980/patientsim/config"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "patientsim-tui",
	Short: "Terminal client for the clinical role-play simulator",
	Long: `patientsim-tui runs a simulated patient conversation in the terminal:
intake, dialogue and a rubric-based debrief. Type /debrief once the
conversation is long enough to receive your evaluation.`,
	RunE: runTUI,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	svc, err := patientsim.New(cfg)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer svc.Close()

	p := tea.NewProgram(newModel(svc), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}

	return nil
}
