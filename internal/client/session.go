package client

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateOffering  SessionState = "offering"
	StateAnswering SessionState = "answering"
	StateConnected SessionState = "connected"
	StateFailed    SessionState = "failed"
	StateClosed    SessionState = "closed"
)

func (s SessionState) terminal() bool {
	return s == StateFailed || s == StateClosed
}

const maxICERestarts = 1

type sessionConfig struct {
	roomID    string
	remoteID  string
	initiator bool
	signaler  Signaler
	log       *slog.Logger

	onStateChange func(remoteID string, state SessionState)
	onFailed      func(remoteID string, err error)
	onTrack       func(remoteID string, track RemoteTrack)
}

// PeerSession negotiates with one remote participant. All transitions are
// serialized by the session mutex; a failure here never touches other
// sessions.
type PeerSession struct {
	RemoteID  string
	Initiator bool

	cfg sessionConfig
	pc  PeerConnection
	log *slog.Logger

	mu                sync.Mutex
	state             SessionState
	localDesc         *webrtc.SessionDescription
	remoteDesc        *webrtc.SessionDescription
	pendingCandidates []webrtc.ICECandidateInit
	offerOutstanding  bool
	renegotiate       bool
	iceFailures       int
	tracks            map[string]*LocalTrack

	// Transitions waiting for the hook goroutine, in order.
	notifyQueue []SessionState
	notifyWake  chan struct{}
}

func newPeerSession(cfg sessionConfig, factory PeerConnectionFactory) (*PeerSession, error) {
	s := &PeerSession{
		RemoteID:  cfg.remoteID,
		Initiator: cfg.initiator,
		cfg:       cfg,
		log: cfg.log.With(
			slog.String("remote_id", cfg.remoteID),
			slog.Bool("initiator", cfg.initiator),
		),
		state:      StateIdle,
		tracks:     make(map[string]*LocalTrack),
		notifyWake: make(chan struct{}, 1),
	}

	pc, err := factory.NewPeerConnection(PeerCallbacks{
		OnICECandidate:          s.sendCandidate,
		OnConnectionStateChange: s.HandleConnectionState,
		OnTrack:                 s.forwardTrack,
	})
	if err != nil {
		return nil, newPeerError(cfg.remoteID, "create peer connection", err)
	}
	s.pc = pc
	if cfg.onStateChange != nil {
		go s.deliverStates()
	}
	return s, nil
}

func (s *PeerSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PendingCandidates returns how many remote candidates wait for a remote
// description.
func (s *PeerSession) PendingCandidates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingCandidates)
}

// AddTrack publishes a local track on this session without negotiating.
func (s *PeerSession) AddTrack(track *LocalTrack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() {
		return ErrSessionClosed
	}
	if _, ok := s.tracks[track.ID]; ok {
		return nil
	}
	if err := s.pc.AddTrack(track); err != nil {
		return newPeerError(s.RemoteID, "add track", err)
	}
	s.tracks[track.ID] = track
	return nil
}

func (s *PeerSession) RemoveTrack(track *LocalTrack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() {
		return ErrSessionClosed
	}
	if _, ok := s.tracks[track.ID]; !ok {
		return nil
	}
	if err := s.pc.RemoveTrack(track); err != nil {
		return newPeerError(s.RemoteID, "remove track", err)
	}
	delete(s.tracks, track.ID)
	return nil
}

// Start sends the first offer when this side is the initiator of the pair.
func (s *PeerSession) Start() error {
	s.mu.Lock()
	if !s.Initiator || s.state != StateIdle {
		s.mu.Unlock()
		return nil
	}
	err := s.offerLocked(false)
	s.mu.Unlock()
	return s.check(err)
}

// Renegotiate runs one more offer/answer round on the connected session. A
// request made while a round is in flight is folded into a single round run
// after it.
func (s *PeerSession) Renegotiate() error {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateConnected || s.offerOutstanding {
		s.renegotiate = true
		s.mu.Unlock()
		return nil
	}
	err := s.offerLocked(false)
	s.mu.Unlock()
	return s.check(err)
}

func (s *PeerSession) HandleOffer(desc webrtc.SessionDescription) error {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return nil
	}

	if s.offerOutstanding {
		if s.Initiator {
			s.log.Debug("ignoring colliding offer")
			s.mu.Unlock()
			return nil
		}
		if err := s.pc.Rollback(); err != nil {
			s.mu.Unlock()
			return s.check(newPeerError(s.RemoteID, "rollback", err))
		}
		s.log.Debug("rolled back local offer for remote offer")
		s.offerOutstanding = false
		s.localDesc = nil
		if s.state == StateConnected {
			s.renegotiate = true
		}
	}

	if s.state == StateIdle || s.state == StateOffering {
		s.setStateLocked(StateAnswering)
	}

	err := s.answerLocked(desc)
	s.mu.Unlock()
	return s.check(err)
}

func (s *PeerSession) HandleAnswer(desc webrtc.SessionDescription) error {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return nil
	}
	if !s.offerOutstanding {
		s.log.Debug("ignoring answer without outstanding offer")
		s.mu.Unlock()
		return nil
	}

	if err := s.setRemoteLocked(desc, "apply answer"); err != nil {
		s.mu.Unlock()
		return s.check(err)
	}
	s.offerOutstanding = false
	s.setStateLocked(StateConnected)

	var err error
	if s.renegotiate {
		s.renegotiate = false
		err = s.offerLocked(false)
	}
	s.mu.Unlock()
	return s.check(err)
}

// HandleCandidate applies a remote candidate, or queues it until the remote
// description is known. Queued candidates keep their arrival order.
func (s *PeerSession) HandleCandidate(candidate webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() {
		return nil
	}
	if s.remoteDesc == nil {
		s.pendingCandidates = append(s.pendingCandidates, candidate)
		return nil
	}
	if err := s.pc.AddICECandidate(candidate); err != nil {
		s.log.Warn("failed to add ice candidate", sl.Err(err))
	}
	return nil
}

// HandleConnectionState reacts to transport state. The first failure is
// answered with an ICE restart offered by the initiator; a second one before
// the connection recovers fails the session.
func (s *PeerSession) HandleConnectionState(state webrtc.PeerConnectionState) {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}

	var err error
	switch state {
	case webrtc.PeerConnectionStateConnected:
		s.iceFailures = 0
	case webrtc.PeerConnectionStateFailed:
		s.iceFailures++
		if s.iceFailures > maxICERestarts {
			err = newPeerError(s.RemoteID, "ice restart", domain.ErrNegotiationFailed)
			break
		}
		s.log.Info("connection failed, restarting ice")
		if s.Initiator {
			err = s.offerLocked(true)
		}
	}
	s.mu.Unlock()
	_ = s.check(err)
}

// Close tears the session down. Safe to call more than once.
func (s *PeerSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked(StateClosed)
}

func (s *PeerSession) offerLocked(iceRestart bool) error {
	offer, err := s.pc.CreateOffer(iceRestart)
	if err != nil {
		return newPeerError(s.RemoteID, "create offer", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return newPeerError(s.RemoteID, "set local offer", err)
	}
	s.localDesc = &offer
	s.offerOutstanding = true
	if s.state == StateIdle {
		s.setStateLocked(StateOffering)
	}

	return s.sendLocked(domain.SignalMessage{
		Type: domain.MessageOffer,
		SDP:  &offer,
	})
}

func (s *PeerSession) answerLocked(offer webrtc.SessionDescription) error {
	if err := s.setRemoteLocked(offer, "apply offer"); err != nil {
		return err
	}

	answer, err := s.pc.CreateAnswer()
	if err != nil {
		return newPeerError(s.RemoteID, "create answer", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return newPeerError(s.RemoteID, "set local answer", err)
	}
	s.localDesc = &answer

	if err := s.sendLocked(domain.SignalMessage{
		Type: domain.MessageAnswer,
		SDP:  &answer,
	}); err != nil {
		return err
	}
	s.setStateLocked(StateConnected)

	if s.renegotiate {
		s.renegotiate = false
		return s.offerLocked(false)
	}
	return nil
}

// setRemoteLocked applies desc and then flushes every queued candidate in
// arrival order.
func (s *PeerSession) setRemoteLocked(desc webrtc.SessionDescription, op string) error {
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return newPeerError(s.RemoteID, op, err)
	}
	s.remoteDesc = &desc

	pending := s.pendingCandidates
	s.pendingCandidates = nil
	for _, candidate := range pending {
		if err := s.pc.AddICECandidate(candidate); err != nil {
			s.log.Warn("failed to add queued ice candidate", sl.Err(err))
		}
	}
	return nil
}

func (s *PeerSession) forwardTrack(track RemoteTrack) {
	if s.cfg.onTrack != nil {
		s.cfg.onTrack(s.RemoteID, track)
	}
}

func (s *PeerSession) sendCandidate(candidate webrtc.ICECandidateInit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() {
		return
	}
	c := candidate
	if err := s.sendLocked(domain.SignalMessage{
		Type:      domain.MessageICECandidate,
		Candidate: &c,
	}); err != nil {
		s.log.Debug("failed to send ice candidate", sl.Err(err))
	}
}

func (s *PeerSession) sendLocked(message domain.SignalMessage) error {
	message.RoomID = s.cfg.roomID
	message.TargetID = s.RemoteID
	if err := s.cfg.signaler.Send(message); err != nil {
		return newPeerError(s.RemoteID, "send "+message.Type, err)
	}
	return nil
}

func (s *PeerSession) setStateLocked(state SessionState) {
	if s.state == state {
		return
	}
	s.log.Debug("session state changed",
		slog.String("from", string(s.state)),
		slog.String("to", string(state)),
	)
	s.state = state
	if s.cfg.onStateChange != nil {
		s.notifyQueue = append(s.notifyQueue, state)
		select {
		case s.notifyWake <- struct{}{}:
		default:
		}
	}
}

// deliverStates runs the state hook outside the session lock, one transition
// at a time and in the order they happened. It exits after a terminal state.
func (s *PeerSession) deliverStates() {
	for range s.notifyWake {
		s.mu.Lock()
		batch := s.notifyQueue
		s.notifyQueue = nil
		s.mu.Unlock()

		for _, state := range batch {
			s.cfg.onStateChange(s.RemoteID, state)
			if state.terminal() {
				return
			}
		}
	}
}

func (s *PeerSession) closeLocked(state SessionState) {
	if s.state.terminal() {
		return
	}
	s.setStateLocked(state)
	s.pendingCandidates = nil
	s.offerOutstanding = false
	s.renegotiate = false
	if err := s.pc.Close(); err != nil {
		s.log.Debug("peer connection close failed", sl.Err(err))
	}
}

// check fails the session on any negotiation error and reports it upward.
func (s *PeerSession) check(err error) error {
	if err == nil {
		return nil
	}
	s.mu.Lock()
	alreadyDone := s.state.terminal()
	s.closeLocked(StateFailed)
	s.mu.Unlock()
	if alreadyDone {
		return err
	}

	s.log.Warn("session failed", sl.Err(err))
	if !errors.Is(err, domain.ErrNegotiationFailed) {
		err = fmt.Errorf("%w: %w", domain.ErrNegotiationFailed, err)
	}
	if s.cfg.onFailed != nil {
		s.cfg.onFailed(s.RemoteID, err)
	}
	return err
}
