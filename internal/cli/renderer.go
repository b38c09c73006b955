package cli

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/immxrtalbeast/axenix_call/internal/client"
)

// drainRenderer consumes remote media without displaying it, which keeps
// pion's receive buffers from filling up. It only keeps packet counts.
type drainRenderer struct {
	log *slog.Logger

	mu      sync.Mutex
	packets map[string]*atomic.Int64
}

func newDrainRenderer(log *slog.Logger) *drainRenderer {
	return &drainRenderer{
		log:     log,
		packets: make(map[string]*atomic.Int64),
	}
}

func (r *drainRenderer) Attach(participantID string, track client.RemoteTrack) {
	r.mu.Lock()
	counter, ok := r.packets[participantID]
	if !ok {
		counter = &atomic.Int64{}
		r.packets[participantID] = counter
	}
	r.mu.Unlock()

	r.log.Info("remote track attached",
		slog.String("participant_id", participantID),
		slog.String("kind", string(track.Kind)),
		slog.String("track_id", track.ID),
	)
	if track.Remote == nil {
		return
	}

	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := track.Remote.Read(buf); err != nil {
				if !errors.Is(err, io.EOF) {
					r.log.Debug("remote track ended", slog.String("track_id", track.ID), slog.String("reason", err.Error()))
				}
				return
			}
			counter.Add(1)
		}
	}()
}

func (r *drainRenderer) Release(participantID string) {
	r.mu.Lock()
	counter, ok := r.packets[participantID]
	delete(r.packets, participantID)
	r.mu.Unlock()

	if ok {
		r.log.Info("remote media released",
			slog.String("participant_id", participantID),
			slog.Int64("packets", counter.Load()),
		)
	}
}

// Packets reports how many RTP packets arrived from participantID.
func (r *drainRenderer) Packets(participantID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if counter, ok := r.packets[participantID]; ok {
		return counter.Load()
	}
	return 0
}
