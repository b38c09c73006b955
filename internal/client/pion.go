package client

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"
)

// PionFactory builds pion peer connections sharing one API and ICE
// configuration.
type PionFactory struct {
	api    *webrtc.API
	config webrtc.Configuration
}

func NewPionFactory(iceServers []webrtc.ICEServer) (*PionFactory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	return &PionFactory{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(m)),
		config: webrtc.Configuration{ICEServers: iceServers},
	}, nil
}

// ICEServers builds the pion ICE server list from STUN urls and optional
// TURN urls with credentials.
func ICEServers(stun, turn []string, username, credential string) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, 2)
	if len(stun) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: stun})
	}
	if len(turn) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:           turn,
			Username:       username,
			Credential:     credential,
			CredentialType: webrtc.ICECredentialTypePassword,
		})
	}
	return servers
}

func (f *PionFactory) NewPeerConnection(callbacks PeerCallbacks) (PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, err
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || callbacks.OnICECandidate == nil {
			return
		}
		callbacks.OnICECandidate(c.ToJSON())
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if callbacks.OnConnectionStateChange != nil {
			callbacks.OnConnectionStateChange(state)
		}
	})
	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if callbacks.OnTrack == nil {
			return
		}
		kind := TrackKindAudio
		if remote.Kind() == webrtc.RTPCodecTypeVideo {
			kind = TrackKindVideo
		}
		callbacks.OnTrack(RemoteTrack{
			ID:       remote.ID(),
			StreamID: remote.StreamID(),
			Kind:     kind,
			Remote:   remote,
		})
	})

	return &pionPeer{pc: pc, senders: make(map[string]*webrtc.RTPSender)}, nil
}

type pionPeer struct {
	pc *webrtc.PeerConnection

	mu      sync.Mutex
	senders map[string]*webrtc.RTPSender
}

func (p *pionPeer) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: iceRestart})
}

func (p *pionPeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *pionPeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(desc)
}

func (p *pionPeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *pionPeer) Rollback() error {
	return p.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback})
}

func (p *pionPeer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

func (p *pionPeer) AddTrack(track *LocalTrack) error {
	if track.Local() == nil {
		return errors.New("track has no pion source")
	}

	sender, err := p.pc.AddTrack(track.Local())
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.senders[track.ID] = sender
	p.mu.Unlock()

	// Drain incoming RTCP.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (p *pionPeer) RemoveTrack(track *LocalTrack) error {
	p.mu.Lock()
	sender, ok := p.senders[track.ID]
	delete(p.senders, track.ID)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return p.pc.RemoveTrack(sender)
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}
