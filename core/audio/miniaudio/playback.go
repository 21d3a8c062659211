package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/sonicursor/core/audio"
)

type playbackClient struct {
	device *malgo.Device
	config malgo.DeviceConfig
	format audio.Format

	active *audio.StreamQueue

	mu       sync.Mutex
	activeMu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, format audio.Format) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleFormat := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(sampleFormat) * int(format.Channels)

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = format.SampleRate
	c.config.Playback.Format = sampleFormat
	c.config.Playback.Channels = uint32(format.Channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	c.config.PeriodSizeInFrames = format.SampleRate / 100 // ~10ms of audio
	c.config.Periods = 3

	var err error
	if c.device, err = malgo.InitDevice(
		audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{
			Data: c.processAudio(bytesPerFrame),
			Stop: c.deviceStopped,
		},
	); err != nil {
		return err
	}
	c.format = format

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if c.device.IsStarted() {
		return nil
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.device.Uninit()
	c.device = nil

	return nil
}

// attach makes queue the stream fed to the device and returns the stream it
// replaced, if any was still unfinished.
func (c *playbackClient) attach(queue *audio.StreamQueue) *audio.StreamQueue {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()

	previous := c.active
	c.active = queue
	if previous != nil && previous.Finished() {
		return nil
	}
	return previous
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.activeMu.Lock()
		queue := c.active
		c.activeMu.Unlock()

		n := 0
		if queue != nil {
			var drained bool
			n, drained = queue.Read(pOutput[:need])
			if drained {
				queue.Finish(nil)
				c.activeMu.Lock()
				if c.active == queue {
					c.active = nil
				}
				c.activeMu.Unlock()
			}
		}

		// Underrun or no stream: play silence instead of stale samples.
		clear(pOutput[n:need])
	}
}

// deviceStopped runs when miniaudio stops the device on its own, which only
// happens when the backend lost it.
func (c *playbackClient) deviceStopped() {
	c.activeMu.Lock()
	queue := c.active
	c.active = nil
	c.activeMu.Unlock()

	if queue != nil {
		queue.Finish(fmt.Errorf("%w: playback device stopped", audio.ErrDeviceWriteFailed))
	}
}
