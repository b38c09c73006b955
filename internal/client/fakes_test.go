package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/pion/webrtc/v3"
)

type fakePeer struct {
	mu            sync.Mutex
	callbacks     PeerCallbacks
	offers        int
	restartOffers int
	answers       int
	rollbacks     int
	local         *webrtc.SessionDescription
	remote        *webrtc.SessionDescription
	candidates    []webrtc.ICECandidateInit
	tracks        map[string]*LocalTrack
	closed        bool
}

func (p *fakePeer) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offers++
	if iceRestart {
		p.restartOffers++
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", p.offers)}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return webrtc.SessionDescription{}, errors.New("no remote offer")
	}
	p.answers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: fmt.Sprintf("answer-%d", p.answers)}, nil
}

func (p *fakePeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.local = &desc
	return nil
}

func (p *fakePeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = &desc
	return nil
}

func (p *fakePeer) Rollback() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rollbacks++
	p.local = nil
	return nil
}

func (p *fakePeer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return errors.New("remote description not set")
	}
	p.candidates = append(p.candidates, candidate)
	return nil
}

func (p *fakePeer) AddTrack(track *LocalTrack) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks[track.ID] = track
	return nil
}

func (p *fakePeer) RemoveTrack(track *LocalTrack) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tracks, track.ID)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) Offers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offers
}

func (p *fakePeer) Candidates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.candidates))
	for _, c := range p.candidates {
		out = append(out, c.Candidate)
	}
	return out
}

func (p *fakePeer) HasTrack(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tracks[id]
	return ok
}

func (p *fakePeer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeFactory struct {
	mu    sync.Mutex
	peers []*fakePeer
}

func (f *fakeFactory) NewPeerConnection(callbacks PeerCallbacks) (PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakePeer{callbacks: callbacks, tracks: make(map[string]*LocalTrack)}
	f.peers = append(f.peers, p)
	return p, nil
}

func (f *fakeFactory) Last() *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.peers) == 0 {
		return nil
	}
	return f.peers[len(f.peers)-1]
}

type fakeSignaler struct {
	mu   sync.Mutex
	sent []domain.SignalMessage
}

func (s *fakeSignaler) Send(message domain.SignalMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, message)
	return nil
}

// Take returns and forgets everything sent so far.
func (s *fakeSignaler) Take() []domain.SignalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sent
	s.sent = nil
	return out
}

func countType(messages []domain.SignalMessage, msgType string) int {
	n := 0
	for _, m := range messages {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

type fakeSource struct {
	err    error
	screen *LocalTrack
}

func (s *fakeSource) OpenUserMedia(context.Context) (*LocalTrack, *LocalTrack, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return NewLocalTrack(TrackKindAudio, nil), NewLocalTrack(TrackKindVideo, nil), nil
}

func (s *fakeSource) OpenScreen(context.Context) (*LocalTrack, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.screen = NewLocalTrack(TrackKindScreen, nil)
	return s.screen, nil
}

type fakeRenderer struct {
	mu       sync.Mutex
	attached map[string][]RemoteTrack
	released []string
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{attached: make(map[string][]RemoteTrack)}
}

func (r *fakeRenderer) Attach(participantID string, track RemoteTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached[participantID] = append(r.attached[participantID], track)
}

func (r *fakeRenderer) Release(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attached, participantID)
	r.released = append(r.released, participantID)
}

func (r *fakeRenderer) Released() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.released...)
}
