package main

import (
	"time"

	"github.com/koscakluka/sonicursor/core/oscillator"
	"github.com/koscakluka/sonicursor/core/playback"
	"github.com/koscakluka/sonicursor/core/tone"
	"github.com/spf13/cobra"
)

const glideStep = 20 * time.Millisecond

var (
	glideDuration time.Duration
	glideLines    uint32
)

var toneCmd = &cobra.Command{
	Use:   "tone",
	Short: "Play a gliding tone to check the audio device",
	Long: `Play the navigation tone while it glides from the first to the last line
of an imaginary document, then release it the way a session ends.`,
	Args: cobra.NoArgs,
	RunE: runToneCheck,
}

func init() {
	toneCmd.Flags().DurationVar(&glideDuration, "duration", 2*time.Second, "how long the glide takes")
	toneCmd.Flags().Uint32Var(&glideLines, "lines", 200, "lines in the imaginary document")
	rootCmd.AddCommand(toneCmd)
}

func runToneCheck(cmd *cobra.Command, args []string) error {
	sink, closeSink, err := openSink(cfg.Audio)
	if err != nil {
		return err
	}
	defer closeSink()

	ctx := cmd.Context()
	total := max(glideLines, 1)
	stream := tone.NewStream(audioFormat(cfg.Audio), float32(cfg.Tone.Volume), oscillator.FrequencyForLine(0, total))
	token := playback.NewCancelToken()

	done := make(chan error, 1)
	go func() { done <- stream.Play(ctx, token, sink) }()

	steps := max(int(glideDuration/glideStep), 1)
	ticker := time.NewTicker(glideStep)
	defer ticker.Stop()

	for i := 1; i <= steps; i++ {
		select {
		case <-ticker.C:
			line := uint32(i) * (total - 1) / uint32(steps)
			stream.SetFrequency(oscillator.FrequencyForLine(line, total))
		case err := <-done:
			return err
		case <-ctx.Done():
			token.Cancel(playback.Preempted)
			return <-done
		}
	}

	token.Cancel(playback.Stopped)
	err = <-done
	diag.Info().Err(err).Dur("duration", glideDuration).Msg("tone check finished")
	return err
}
