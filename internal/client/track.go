package client

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

type TrackKind string

const (
	TrackKindAudio  TrackKind = "audio"
	TrackKindVideo  TrackKind = "video"
	TrackKindScreen TrackKind = "screen"
)

type sampleWriter interface {
	WriteSample(sample media.Sample) error
}

// LocalTrack is a captured track published to every session. Disabling it
// keeps the track negotiated and drops its samples.
type LocalTrack struct {
	ID   string
	Kind TrackKind

	local   webrtc.TrackLocal
	enabled atomic.Bool
	stopped atomic.Bool

	mu      sync.Mutex
	onEnded []func()
}

// NewLocalTrack wraps a pion track. local may be nil for tracks that are
// only negotiated through a fake peer connection.
func NewLocalTrack(kind TrackKind, local webrtc.TrackLocal) *LocalTrack {
	id := uuid.New().String()
	if local != nil {
		id = local.ID()
	}
	t := &LocalTrack{
		ID:    id,
		Kind:  kind,
		local: local,
	}
	t.enabled.Store(true)
	return t
}

func (t *LocalTrack) Local() webrtc.TrackLocal {
	return t.local
}

func (t *LocalTrack) Enabled() bool {
	return t.enabled.Load()
}

func (t *LocalTrack) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

func (t *LocalTrack) Stopped() bool {
	return t.stopped.Load()
}

// WriteSample forwards a sample unless the track is disabled or stopped.
func (t *LocalTrack) WriteSample(sample media.Sample) error {
	if !t.Enabled() || t.Stopped() {
		return nil
	}
	w, ok := t.local.(sampleWriter)
	if !ok {
		return nil
	}
	return w.WriteSample(sample)
}

// OnEnded registers fn to run once when the track stops, whether stopped
// locally or ended by the capture source.
func (t *LocalTrack) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = append(t.onEnded, fn)
}

func (t *LocalTrack) Stop() {
	if !t.stopped.CompareAndSwap(false, true) {
		return
	}
	t.mu.Lock()
	handlers := t.onEnded
	t.onEnded = nil
	t.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}
