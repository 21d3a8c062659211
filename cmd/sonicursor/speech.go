package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/koscakluka/sonicursor/core/playback"
	"github.com/koscakluka/sonicursor/core/speech"
	"github.com/koscakluka/sonicursor/core/speech/deepgram"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
)

const voicesWidth = 72

var errNoSpeech = errors.New("no speech backend configured")

var speechCmd = &cobra.Command{
	Use:   "speech",
	Short: "Check the text-to-speech backend",
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Ask the HTTP speech service whether it is ready",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Speech.Backend != "http" {
			return fmt.Errorf("health checks need the http backend, configured: %s", cfg.Speech.Backend)
		}
		client := speech.NewClient(cfg.Speech.URL, speech.WithTimeout(cfg.Speech.Timeout))
		if err := client.Health(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is ready\n", cfg.Speech.URL)
		return nil
	},
}

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the voices of the speech backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var voices []string
		switch cfg.Speech.Backend {
		case "http":
			client := speech.NewClient(cfg.Speech.URL, speech.WithTimeout(cfg.Speech.Timeout))
			var err error
			if voices, err = client.Voices(cmd.Context()); err != nil {
				return err
			}
		case "deepgram":
			for _, v := range deepgram.GetAvailableVoices() {
				voices = append(voices, string(v))
			}
		default:
			return errNoSpeech
		}
		fmt.Fprintln(cmd.OutOrStdout(), wordwrap.String(strings.Join(voices, ", "), voicesWidth))
		return nil
	},
}

var sayCmd = &cobra.Command{
	Use:   "say <text>",
	Short: "Speak text through the configured speech backend",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		synth, err := newSynthesizer(cfg.Speech)
		if err != nil {
			return err
		}
		if synth == nil {
			return errNoSpeech
		}

		sink, closeSink, err := openSink(cfg.Audio)
		if err != nil {
			return err
		}
		defer closeSink()

		utterance := speech.NewUtterance(synth, speech.Request{
			Text:   strings.Join(args, " "),
			Voice:  cfg.Speech.Voice,
			Speed:  cfg.Speech.Speed,
			Pitch:  cfg.Speech.Pitch,
			Format: audioFormat(cfg.Audio),
		})
		return utterance.Play(cmd.Context(), playback.NewCancelToken(), sink)
	},
}

func init() {
	speechCmd.AddCommand(healthCmd, voicesCmd, sayCmd)
	rootCmd.AddCommand(speechCmd)
}
