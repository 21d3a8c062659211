package main

import (
	"testing"
	"time"

	"github.com/koscakluka/sonicursor/config"
	feedback "github.com/koscakluka/sonicursor/core"
	"github.com/koscakluka/sonicursor/core/audio"
	"github.com/koscakluka/sonicursor/core/loop"
	"github.com/koscakluka/sonicursor/core/speech"
	"github.com/koscakluka/sonicursor/core/speech/deepgram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSink(t *testing.T) {
	sink, closeSink, err := openSink(config.AudioConfig{Backend: "none"})
	require.NoError(t, err)
	assert.IsType(t, &audio.NullSink{}, sink)
	closeSink()

	_, _, err = openSink(config.AudioConfig{Backend: "jack"})
	assert.Error(t, err)
}

func TestNewSynthesizer(t *testing.T) {
	synth, err := newSynthesizer(config.SpeechConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, synth)

	synth, err = newSynthesizer(config.SpeechConfig{Backend: "http", URL: "http://localhost:5002"})
	require.NoError(t, err)
	assert.IsType(t, &speech.Client{}, synth)

	t.Setenv("DEEPGRAM_API_KEY", "")
	_, err = newSynthesizer(config.SpeechConfig{Backend: "deepgram"})
	assert.ErrorIs(t, err, deepgram.ErrMissingAPIKey)

	t.Setenv("DEEPGRAM_API_KEY", "key")
	synth, err = newSynthesizer(config.SpeechConfig{Backend: "deepgram", Voice: string(deepgram.AuraOrionEn)})
	require.NoError(t, err)
	assert.IsType(t, &deepgram.Synthesizer{}, synth)
}

func TestEngineOptionsFromConfig(t *testing.T) {
	c := config.Default()
	c.Speech.Backend = "http"
	c.Speech.URL = "http://localhost:5002"

	opts, err := engineOptions(c)
	require.NoError(t, err)

	opts = append(opts, feedback.WithLoop(loop.NewManual(time.Unix(0, 0))))
	engine, err := feedback.New(audio.NewMemorySink(), opts...)
	require.NoError(t, err)
	assert.NotNil(t, engine)

	c.Speech.Backend = "deepgram"
	t.Setenv("DEEPGRAM_API_KEY", "")
	_, err = engineOptions(c)
	assert.ErrorIs(t, err, deepgram.ErrMissingAPIKey)
}
