package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	feedback "github.com/koscakluka/sonicursor/core"
	"github.com/spf13/cobra"
)

const scratchURI = "untitled:scratch"

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Edit a file with audio feedback",
	Long: `Open a file in a small terminal editor. Moving quickly through lines plays
a tone whose pitch follows the cursor, stopping narrates the line, and typing
plays earcons. ctrl+o switches to a scratch buffer.`,
	Args: cobra.ExactArgs(1),
	RunE: runEditor,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runEditor(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	sink, closeSink, err := openSink(cfg.Audio)
	if err != nil {
		return fmt.Errorf("opening %s audio: %w", cfg.Audio.Backend, err)
	}
	defer closeSink()

	opts, err := engineOptions(cfg)
	if err != nil {
		return err
	}
	engine, err := feedback.New(sink, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	engineDone := make(chan error, 1)
	go func() { engineDone <- engine.Run(ctx) }()

	diag.Info().Str("file", path).Msg("editor opened")
	program := tea.NewProgram(
		newModel(engine, newDocument("file://"+filepath.ToSlash(path), string(text)), newDocument(scratchURI, "")),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, runErr := program.Run()
	if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
		runErr = nil
	}

	cancel()
	if err := <-engineDone; err != nil {
		diag.Error().Err(err).Msg("feedback engine stopped")
		return err
	}
	diag.Info().Msg("editor closed")
	return runErr
}
