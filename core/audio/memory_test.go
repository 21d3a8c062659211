package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuffer() PCMBuffer {
	return NewPCMBuffer(GetDefaultFormat(), 4)
}

func TestMemorySinkReportsBackpressureAtHighWater(t *testing.T) {
	sink := NewMemorySink(WithHighWater(2))
	h, err := sink.Open(GetDefaultFormat())
	require.NoError(t, err)

	res, err := h.Write(testBuffer())
	require.NoError(t, err)
	assert.Equal(t, Accepted, res)

	res, err = h.Write(testBuffer())
	require.NoError(t, err)
	assert.Equal(t, Backpressured, res)
	assert.Len(t, sink.Written(), 2)

	assert.Equal(t, 1, sink.Consume(1))
	select {
	case <-h.Ready():
	default:
		t.Fatal("expected ready after draining below high water")
	}
}

func TestMemorySinkOpenReleasesPreviousHandle(t *testing.T) {
	sink := NewMemorySink()
	first, err := sink.Open(GetDefaultFormat())
	require.NoError(t, err)

	_, err = sink.Open(GetDefaultFormat())
	require.NoError(t, err)

	<-first.Done()
	assert.ErrorIs(t, first.Err(), ErrDeviceReleased)
	_, err = first.Write(testBuffer())
	assert.ErrorIs(t, err, ErrDeviceReleased)
	assert.Len(t, sink.Opens(), 2)
}

func TestMemorySinkManualDrainFinishesAfterConsume(t *testing.T) {
	sink := NewMemorySink(WithManualDrain())
	h, err := sink.Open(GetDefaultFormat())
	require.NoError(t, err)
	_, err = h.Write(testBuffer())
	require.NoError(t, err)

	require.NoError(t, h.Close())
	select {
	case <-h.Done():
		t.Fatal("handle finished before its queue drained")
	default:
	}

	sink.Consume(1)
	<-h.Done()
	assert.NoError(t, h.Err())
}

func TestMemorySinkFailures(t *testing.T) {
	_, err := NewMemorySink(WithOpenError(errors.New("no card"))).Open(GetDefaultFormat())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)

	sink := NewMemorySink(WithWriteFailureAfter(1))
	h, err := sink.Open(GetDefaultFormat())
	require.NoError(t, err)
	_, err = h.Write(testBuffer())
	require.NoError(t, err)
	_, err = h.Write(testBuffer())
	assert.ErrorIs(t, err, ErrDeviceWriteFailed)
	<-h.Done()

	sink = NewMemorySink()
	h, err = sink.Open(GetDefaultFormat())
	require.NoError(t, err)
	sink.Fail(errors.New("unplugged"))
	<-h.Done()
	assert.ErrorIs(t, h.Err(), ErrDeviceWriteFailed)
}
