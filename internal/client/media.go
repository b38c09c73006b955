package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
)

// MediaSource captures local media. Implementations return an error wrapping
// domain.ErrMediaAccessDenied when the user or platform refuses access.
type MediaSource interface {
	OpenUserMedia(ctx context.Context) (audio, video *LocalTrack, err error)
	OpenScreen(ctx context.Context) (*LocalTrack, error)
}

type sessionSet interface {
	Sessions() []*PeerSession
}

// MediaController owns the local tracks. Mute and camera toggles only flip
// track enablement; screen share adds or removes a track and renegotiates
// every session once.
type MediaController struct {
	log      *slog.Logger
	source   MediaSource
	signaler Signaler
	sessions sessionSet

	mu     sync.Mutex
	audio  *LocalTrack
	video  *LocalTrack
	screen *LocalTrack
}

func NewMediaController(log *slog.Logger, source MediaSource, signaler Signaler) *MediaController {
	if log == nil {
		log = slog.Default()
	}
	return &MediaController{
		log:      log,
		source:   source,
		signaler: signaler,
	}
}

func (m *MediaController) bind(sessions sessionSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = sessions
}

// Start opens microphone and camera. It must succeed before joining a room.
func (m *MediaController) Start(ctx context.Context) error {
	audio, video, err := m.source.OpenUserMedia(ctx)
	if err != nil {
		return accessDenied("open user media", err)
	}

	m.mu.Lock()
	m.audio, m.video = audio, video
	m.mu.Unlock()
	return nil
}

// LocalTracks lists every live local track, screen included.
func (m *MediaController) LocalTracks() []*LocalTrack {
	m.mu.Lock()
	defer m.mu.Unlock()

	tracks := make([]*LocalTrack, 0, 3)
	for _, t := range []*LocalTrack{m.audio, m.video, m.screen} {
		if t != nil {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

func (m *MediaController) MediaState() domain.MediaState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *MediaController) SetAudioEnabled(enabled bool) error {
	return m.toggle(func() *LocalTrack { return m.audio }, enabled)
}

func (m *MediaController) SetVideoEnabled(enabled bool) error {
	return m.toggle(func() *LocalTrack { return m.video }, enabled)
}

func (m *MediaController) toggle(pick func() *LocalTrack, enabled bool) error {
	m.mu.Lock()
	track := pick()
	if track == nil {
		m.mu.Unlock()
		return ErrNoLocalMedia
	}
	track.SetEnabled(enabled)
	state := m.stateLocked()
	m.mu.Unlock()

	return m.signaler.Send(domain.SignalMessage{
		Type:       domain.MessageUserMediaChanged,
		MediaState: &state,
	})
}

// StartScreenShare publishes a screen track to every session. When the
// capture ends on its own the share is stopped as if the user had asked.
func (m *MediaController) StartScreenShare(ctx context.Context) error {
	m.mu.Lock()
	sharing := m.screen != nil
	m.mu.Unlock()
	if sharing {
		return ErrAlreadySharing
	}

	track, err := m.source.OpenScreen(ctx)
	if err != nil {
		return accessDenied("open screen", err)
	}

	m.mu.Lock()
	if m.screen != nil {
		m.mu.Unlock()
		track.Stop()
		return ErrAlreadySharing
	}
	m.screen = track
	sessions := m.sessions
	m.mu.Unlock()

	track.OnEnded(func() { m.screenEnded(track) })

	var errs []error
	if sessions != nil {
		for _, s := range sessions.Sessions() {
			if err := s.AddTrack(track); err != nil {
				errs = append(errs, skipClosed(err))
				continue
			}
			errs = append(errs, skipClosed(s.Renegotiate()))
		}
	}
	errs = append(errs, m.signaler.Send(domain.SignalMessage{Type: domain.MessageScreenShareStarted}))
	return errors.Join(errs...)
}

func (m *MediaController) StopScreenShare() error {
	m.mu.Lock()
	track := m.screen
	m.screen = nil
	m.mu.Unlock()

	if track == nil {
		return nil
	}
	return m.unpublishScreen(track)
}

func (m *MediaController) screenEnded(track *LocalTrack) {
	m.mu.Lock()
	active := m.screen == track
	if active {
		m.screen = nil
	}
	m.mu.Unlock()

	if !active {
		return
	}
	m.log.Info("screen capture ended")
	if err := m.unpublishScreen(track); err != nil {
		m.log.Warn("failed to stop screen share", sl.Err(err))
	}
}

func (m *MediaController) unpublishScreen(track *LocalTrack) error {
	m.mu.Lock()
	sessions := m.sessions
	m.mu.Unlock()

	var errs []error
	if sessions != nil {
		for _, s := range sessions.Sessions() {
			if err := s.RemoveTrack(track); err != nil {
				errs = append(errs, skipClosed(err))
				continue
			}
			errs = append(errs, skipClosed(s.Renegotiate()))
		}
	}
	track.Stop()
	errs = append(errs, m.signaler.Send(domain.SignalMessage{Type: domain.MessageScreenShareStopped}))
	return errors.Join(errs...)
}

// Close stops every local track.
func (m *MediaController) Close() {
	m.mu.Lock()
	tracks := []*LocalTrack{m.audio, m.video, m.screen}
	m.audio, m.video, m.screen = nil, nil, nil
	m.mu.Unlock()

	for _, t := range tracks {
		if t != nil {
			t.Stop()
		}
	}
}

func (m *MediaController) stateLocked() domain.MediaState {
	return domain.MediaState{
		Audio:       m.audio != nil && m.audio.Enabled(),
		Video:       m.video != nil && m.video.Enabled(),
		ScreenShare: m.screen != nil,
	}
}

func accessDenied(op string, err error) error {
	if errors.Is(err, domain.ErrMediaAccessDenied) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrMediaAccessDenied, err)
}

func skipClosed(err error) error {
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}
