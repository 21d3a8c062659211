// Package config loads sonicursor settings from a YAML file and SONICURSOR_*
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/sonicursor/core/movement"
	"github.com/spf13/viper"
)

const (
	envPrefix = "SONICURSOR"
	fileName  = "sonicursor"
)

var (
	AudioBackends  = []string{"miniaudio", "portaudio", "pulse", "none"}
	SpeechBackends = []string{"none", "http", "deepgram"}
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Audio       AudioConfig       `json:"audio" mapstructure:"audio"`
	Tone        ToneConfig        `json:"tone" mapstructure:"tone"`
	Movement    MovementConfig    `json:"movement" mapstructure:"movement"`
	Keystroke   KeystrokeConfig   `json:"keystroke" mapstructure:"keystroke"`
	Suppression SuppressionConfig `json:"suppression" mapstructure:"suppression"`
	Arbiter     ArbiterConfig     `json:"arbiter" mapstructure:"arbiter"`
	Speech      SpeechConfig      `json:"speech" mapstructure:"speech"`
	Earcons     EarconConfig      `json:"earcons" mapstructure:"earcons"`
	Diagnostics DiagnosticsConfig `json:"diagnostics" mapstructure:"diagnostics"`
}

type AudioConfig struct {
	Backend       string        `json:"backend" mapstructure:"backend" jsonschema:"enum=miniaudio,enum=portaudio,enum=pulse,enum=none"`
	SampleRate    uint32        `json:"sample_rate" mapstructure:"sample_rate" jsonschema:"minimum=8000"`
	Channels      uint8         `json:"channels" mapstructure:"channels" jsonschema:"minimum=1,maximum=8"`
	QueueDuration time.Duration `json:"queue_duration" mapstructure:"queue_duration" jsonschema:"type=string,description=Audio queued before writes report backpressure"`
}

type ToneConfig struct {
	Volume  float64       `json:"volume" mapstructure:"volume" jsonschema:"minimum=0,maximum=1"`
	Chunk   time.Duration `json:"chunk" mapstructure:"chunk" jsonschema:"type=string"`
	Release time.Duration `json:"release" mapstructure:"release" jsonschema:"type=string"`
	Settle  time.Duration `json:"settle" mapstructure:"settle" jsonschema:"type=string,description=Pause between the end of the tone and line narration"`
}

type MovementConfig struct {
	Window      time.Duration `json:"window" mapstructure:"window" jsonschema:"type=string"`
	Threshold   float64       `json:"threshold" mapstructure:"threshold" jsonschema:"minimum=0.1,maximum=20,description=Lines per second that count as fast navigation"`
	MinSamples  int           `json:"min_samples" mapstructure:"min_samples" jsonschema:"minimum=2"`
	IdleKnown   time.Duration `json:"idle_known" mapstructure:"idle_known" jsonschema:"type=string"`
	IdleUnknown time.Duration `json:"idle_unknown" mapstructure:"idle_unknown" jsonschema:"type=string"`
}

type KeystrokeConfig struct {
	BatchIdle     time.Duration `json:"batch_idle" mapstructure:"batch_idle" jsonschema:"type=string"`
	BatchMaxItems int           `json:"batch_max_items" mapstructure:"batch_max_items" jsonschema:"minimum=1"`
}

type SuppressionConfig struct {
	UndoWindow      time.Duration `json:"undo_window" mapstructure:"undo_window" jsonschema:"type=string"`
	TypingWindow    time.Duration `json:"typing_window" mapstructure:"typing_window" jsonschema:"type=string"`
	MaxChanges      int           `json:"max_changes" mapstructure:"max_changes" jsonschema:"minimum=1"`
	MaxChangeLength int           `json:"max_change_length" mapstructure:"max_change_length" jsonschema:"minimum=1"`
}

type ArbiterConfig struct {
	Grace    time.Duration `json:"grace" mapstructure:"grace" jsonschema:"type=string"`
	MaxQueue int           `json:"max_queue" mapstructure:"max_queue" jsonschema:"minimum=0"`
}

type SpeechConfig struct {
	Backend string        `json:"backend" mapstructure:"backend" jsonschema:"enum=none,enum=http,enum=deepgram"`
	URL     string        `json:"url,omitempty" mapstructure:"url"`
	Voice   string        `json:"voice,omitempty" mapstructure:"voice"`
	Speed   float64       `json:"speed" mapstructure:"speed" jsonschema:"exclusiveMinimum=0"`
	Pitch   float64       `json:"pitch" mapstructure:"pitch" jsonschema:"exclusiveMinimum=0"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout" jsonschema:"type=string"`
}

type EarconConfig struct {
	Dir        string        `json:"dir,omitempty" mapstructure:"dir" jsonschema:"description=Directory with .wav or .flac earcons"`
	Volume     float64       `json:"volume" mapstructure:"volume" jsonschema:"minimum=0,maximum=1"`
	Gap        time.Duration `json:"gap" mapstructure:"gap" jsonschema:"type=string"`
	PanColumns uint32        `json:"pan_columns" mapstructure:"pan_columns" jsonschema:"minimum=1"`
	Preload    []string      `json:"preload,omitempty" mapstructure:"preload"`
}

type DiagnosticsConfig struct {
	Dir string `json:"dir,omitempty" mapstructure:"dir" jsonschema:"description=Where the diagnostics log is written"`
}

func Default() Config {
	return Config{
		Audio: AudioConfig{
			Backend:       "miniaudio",
			SampleRate:    48000,
			Channels:      2,
			QueueDuration: 250 * time.Millisecond,
		},
		Tone: ToneConfig{
			Volume:  0.3,
			Chunk:   50 * time.Millisecond,
			Release: 15 * time.Millisecond,
			Settle:  150 * time.Millisecond,
		},
		Movement: MovementConfig{
			Window:      movement.DefaultWindow,
			Threshold:   movement.DefaultThreshold,
			MinSamples:  movement.DefaultMinSamples,
			IdleKnown:   movement.DefaultIdleKnown,
			IdleUnknown: movement.DefaultIdleUnknown,
		},
		Keystroke: KeystrokeConfig{
			BatchIdle:     35 * time.Millisecond,
			BatchMaxItems: 3,
		},
		Suppression: SuppressionConfig{
			UndoWindow:      500 * time.Millisecond,
			TypingWindow:    100 * time.Millisecond,
			MaxChanges:      3,
			MaxChangeLength: 50,
		},
		Arbiter: ArbiterConfig{
			Grace:    60 * time.Millisecond,
			MaxQueue: 8,
		},
		Speech: SpeechConfig{
			Backend: "none",
			Speed:   1,
			Pitch:   1,
			Timeout: 5 * time.Second,
		},
		Earcons: EarconConfig{
			Volume:     0.8,
			Gap:        15 * time.Millisecond,
			PanColumns: 120,
			Preload:    []string{"char", "space", "tab", "enter", "backspace", "line_end", "undo"},
		},
	}
}

// Load reads path, or the first sonicursor.yaml found in the working
// directory or the user config directory when path is empty, on top of the
// defaults. Environment variables win over the file.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, fileName))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	defaults := map[string]any{
		"audio.backend":                 d.Audio.Backend,
		"audio.sample_rate":             d.Audio.SampleRate,
		"audio.channels":                d.Audio.Channels,
		"audio.queue_duration":          d.Audio.QueueDuration,
		"tone.volume":                   d.Tone.Volume,
		"tone.chunk":                    d.Tone.Chunk,
		"tone.release":                  d.Tone.Release,
		"tone.settle":                   d.Tone.Settle,
		"movement.window":               d.Movement.Window,
		"movement.threshold":            d.Movement.Threshold,
		"movement.min_samples":          d.Movement.MinSamples,
		"movement.idle_known":           d.Movement.IdleKnown,
		"movement.idle_unknown":         d.Movement.IdleUnknown,
		"keystroke.batch_idle":          d.Keystroke.BatchIdle,
		"keystroke.batch_max_items":     d.Keystroke.BatchMaxItems,
		"suppression.undo_window":       d.Suppression.UndoWindow,
		"suppression.typing_window":     d.Suppression.TypingWindow,
		"suppression.max_changes":       d.Suppression.MaxChanges,
		"suppression.max_change_length": d.Suppression.MaxChangeLength,
		"arbiter.grace":                 d.Arbiter.Grace,
		"arbiter.max_queue":             d.Arbiter.MaxQueue,
		"speech.backend":                d.Speech.Backend,
		"speech.url":                    d.Speech.URL,
		"speech.voice":                  d.Speech.Voice,
		"speech.speed":                  d.Speech.Speed,
		"speech.pitch":                  d.Speech.Pitch,
		"speech.timeout":                d.Speech.Timeout,
		"earcons.dir":                   d.Earcons.Dir,
		"earcons.volume":                d.Earcons.Volume,
		"earcons.gap":                   d.Earcons.Gap,
		"earcons.pan_columns":           d.Earcons.PanColumns,
		"earcons.preload":               d.Earcons.Preload,
		"diagnostics.dir":               d.Diagnostics.Dir,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// normalize clamps values that have a sensible nearest setting.
func (c *Config) normalize() {
	c.Movement.Threshold = movement.ClampThreshold(c.Movement.Threshold)
	c.Tone.Volume = clamp01(c.Tone.Volume)
	c.Earcons.Volume = clamp01(c.Earcons.Volume)
	c.Audio.Backend = strings.ToLower(strings.TrimSpace(c.Audio.Backend))
	c.Speech.Backend = strings.ToLower(strings.TrimSpace(c.Speech.Backend))
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

// Validate reports every setting that cannot be used.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if !slices.Contains(AudioBackends, c.Audio.Backend) {
		invalid("audio.backend %q is not one of %s", c.Audio.Backend, strings.Join(AudioBackends, ", "))
	}
	if c.Audio.SampleRate < 8000 {
		invalid("audio.sample_rate %d is below 8000", c.Audio.SampleRate)
	}
	if c.Audio.Channels == 0 {
		invalid("audio.channels must be at least 1")
	}
	if c.Tone.Chunk <= 0 {
		invalid("tone.chunk must be positive")
	}
	if c.Movement.Window <= 0 {
		invalid("movement.window must be positive")
	}
	if c.Movement.MinSamples < 2 {
		invalid("movement.min_samples %d is below 2", c.Movement.MinSamples)
	}
	if c.Movement.IdleKnown <= 0 || c.Movement.IdleUnknown <= 0 {
		invalid("movement idle timeouts must be positive")
	}
	if c.Keystroke.BatchIdle <= 0 || c.Keystroke.BatchMaxItems < 1 {
		invalid("keystroke batching needs a positive idle gap and at least one item")
	}
	if c.Suppression.MaxChanges < 1 || c.Suppression.MaxChangeLength < 1 {
		invalid("suppression limits must be at least 1")
	}
	if c.Arbiter.Grace <= 0 {
		invalid("arbiter.grace must be positive")
	}
	if c.Arbiter.MaxQueue < 0 {
		invalid("arbiter.max_queue must not be negative")
	}
	if !slices.Contains(SpeechBackends, c.Speech.Backend) {
		invalid("speech.backend %q is not one of %s", c.Speech.Backend, strings.Join(SpeechBackends, ", "))
	}
	if c.Speech.Backend == "http" && c.Speech.URL == "" {
		invalid("speech.url is required for the http backend")
	}
	if c.Speech.Speed <= 0 || c.Speech.Pitch <= 0 {
		invalid("speech speed and pitch must be positive")
	}
	if c.Earcons.PanColumns == 0 {
		invalid("earcons.pan_columns must be at least 1")
	}
	return errors.Join(errs...)
}

// Snapshot returns a deep copy that can be changed without affecting c.
func (c Config) Snapshot() (Config, error) {
	var out Config
	if err := copier.CopyWithOption(&out, &c, copier.Option{DeepCopy: true}); err != nil {
		return Config{}, fmt.Errorf("copying config: %w", err)
	}
	return out, nil
}

// Schema describes the configuration file as JSON schema.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&Config{})
	schema.Title = "sonicursor configuration"
	return json.MarshalIndent(schema, "", "  ")
}
