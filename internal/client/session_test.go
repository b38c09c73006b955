package client

import (
	"sync"
	"testing"
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/lib/logger/handlers/slogdiscard"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionHarness struct {
	session  *PeerSession
	peer     *fakePeer
	signaler *fakeSignaler

	mu       sync.Mutex
	failures []error
}

func newSessionHarness(t *testing.T, initiator bool) *sessionHarness {
	t.Helper()
	h := &sessionHarness{signaler: &fakeSignaler{}}
	factory := &fakeFactory{}

	session, err := newPeerSession(sessionConfig{
		roomID:    "ROOM01",
		remoteID:  "remote",
		initiator: initiator,
		signaler:  h.signaler,
		log:       slogdiscard.NewDiscardLogger(),
		onFailed: func(_ string, err error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.failures = append(h.failures, err)
		},
	}, factory)
	require.NoError(t, err)

	h.session = session
	h.peer = factory.Last()
	return h
}

func (h *sessionHarness) Failures() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.failures...)
}

// connect drives the session through its first offer/answer round.
func (h *sessionHarness) connect(t *testing.T) {
	t.Helper()
	if h.session.Initiator {
		require.NoError(t, h.session.Start())
		require.NoError(t, h.session.HandleAnswer(answer("answer-1")))
	} else {
		require.NoError(t, h.session.HandleOffer(offer("offer-1")))
	}
	require.Equal(t, StateConnected, h.session.State())
	h.signaler.Take()
}

func offer(sdp string) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
}

func answer(sdp string) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
}

func candidate(c string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: c}
}

func TestSessionInitiatorOffers(t *testing.T) {
	h := newSessionHarness(t, true)
	assert.Equal(t, StateIdle, h.session.State())

	require.NoError(t, h.session.Start())
	assert.Equal(t, StateOffering, h.session.State())

	sent := h.signaler.Take()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.MessageOffer, sent[0].Type)
	assert.Equal(t, "remote", sent[0].TargetID)
	assert.Equal(t, "ROOM01", sent[0].RoomID)

	require.NoError(t, h.session.HandleAnswer(answer("answer-1")))
	assert.Equal(t, StateConnected, h.session.State())
}

func TestSessionNonInitiatorWaits(t *testing.T) {
	h := newSessionHarness(t, false)

	require.NoError(t, h.session.Start())
	assert.Equal(t, StateIdle, h.session.State())
	assert.Empty(t, h.signaler.Take())

	require.NoError(t, h.session.HandleOffer(offer("offer-1")))
	assert.Equal(t, StateConnected, h.session.State())

	sent := h.signaler.Take()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.MessageAnswer, sent[0].Type)
}

func TestSessionQueuesCandidatesUntilRemoteDescription(t *testing.T) {
	h := newSessionHarness(t, false)

	for _, c := range []string{"C1", "C2", "C3"} {
		require.NoError(t, h.session.HandleCandidate(candidate(c)))
	}
	assert.Equal(t, 3, h.session.PendingCandidates())
	assert.Empty(t, h.peer.Candidates())

	require.NoError(t, h.session.HandleOffer(offer("offer-1")))
	assert.Equal(t, []string{"C1", "C2", "C3"}, h.peer.Candidates())
	assert.Zero(t, h.session.PendingCandidates())

	require.NoError(t, h.session.HandleCandidate(candidate("C4")))
	assert.Equal(t, []string{"C1", "C2", "C3", "C4"}, h.peer.Candidates())
}

func TestSessionInitiatorIgnoresCollidingOffer(t *testing.T) {
	h := newSessionHarness(t, true)
	require.NoError(t, h.session.Start())
	h.signaler.Take()

	require.NoError(t, h.session.HandleOffer(offer("their-offer")))
	assert.Empty(t, h.signaler.Take())
	assert.Zero(t, h.peer.rollbacks)
	assert.Equal(t, StateOffering, h.session.State())

	require.NoError(t, h.session.HandleAnswer(answer("answer-1")))
	assert.Equal(t, StateConnected, h.session.State())
}

func TestSessionNonInitiatorRollsBackOnGlare(t *testing.T) {
	h := newSessionHarness(t, false)
	h.connect(t)

	require.NoError(t, h.session.Renegotiate())
	sent := h.signaler.Take()
	require.Equal(t, 1, countType(sent, domain.MessageOffer))

	require.NoError(t, h.session.HandleOffer(offer("their-offer")))
	assert.Equal(t, 1, h.peer.rollbacks)

	sent = h.signaler.Take()
	require.Len(t, sent, 2)
	assert.Equal(t, domain.MessageAnswer, sent[0].Type)
	assert.Equal(t, domain.MessageOffer, sent[1].Type)
	assert.Equal(t, StateConnected, h.session.State())
}

func TestSessionCoalescesRenegotiation(t *testing.T) {
	h := newSessionHarness(t, true)
	h.connect(t)

	require.NoError(t, h.session.Renegotiate())
	require.NoError(t, h.session.Renegotiate())
	require.NoError(t, h.session.Renegotiate())
	assert.Equal(t, 1, countType(h.signaler.Take(), domain.MessageOffer))

	require.NoError(t, h.session.HandleAnswer(answer("answer-2")))
	assert.Equal(t, 1, countType(h.signaler.Take(), domain.MessageOffer))

	require.NoError(t, h.session.HandleAnswer(answer("answer-3")))
	assert.Empty(t, h.signaler.Take())
}

func TestSessionICERestartThenFail(t *testing.T) {
	h := newSessionHarness(t, true)
	h.connect(t)

	h.session.HandleConnectionState(webrtc.PeerConnectionStateFailed)
	assert.Equal(t, 1, h.peer.restartOffers)
	assert.Equal(t, 1, countType(h.signaler.Take(), domain.MessageOffer))
	assert.Equal(t, StateConnected, h.session.State())
	assert.Empty(t, h.Failures())

	h.session.HandleConnectionState(webrtc.PeerConnectionStateFailed)
	assert.Equal(t, StateFailed, h.session.State())
	assert.True(t, h.peer.Closed())

	failures := h.Failures()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], domain.ErrNegotiationFailed)

	var peerErr *PeerError
	require.ErrorAs(t, failures[0], &peerErr)
	assert.Equal(t, "remote", peerErr.Peer)
}

func TestSessionRestartBudgetResetsOnRecovery(t *testing.T) {
	h := newSessionHarness(t, true)
	h.connect(t)

	h.session.HandleConnectionState(webrtc.PeerConnectionStateFailed)
	h.session.HandleConnectionState(webrtc.PeerConnectionStateConnected)
	h.session.HandleConnectionState(webrtc.PeerConnectionStateFailed)

	assert.Equal(t, 2, h.peer.restartOffers)
	assert.Equal(t, StateConnected, h.session.State())
	assert.Empty(t, h.Failures())
}

func TestSessionNonInitiatorWaitsForRestartOffer(t *testing.T) {
	h := newSessionHarness(t, false)
	h.connect(t)

	h.session.HandleConnectionState(webrtc.PeerConnectionStateFailed)
	assert.Zero(t, h.peer.restartOffers)
	assert.Empty(t, h.signaler.Take())

	require.NoError(t, h.session.HandleOffer(offer("restart-offer")))
	assert.Equal(t, 1, countType(h.signaler.Take(), domain.MessageAnswer))

	h.session.HandleConnectionState(webrtc.PeerConnectionStateFailed)
	assert.Equal(t, StateFailed, h.session.State())
}

func TestSessionCloseIsTerminal(t *testing.T) {
	h := newSessionHarness(t, false)
	h.session.Close()
	h.session.Close()

	assert.Equal(t, StateClosed, h.session.State())
	require.NoError(t, h.session.HandleOffer(offer("late")))
	assert.Empty(t, h.signaler.Take())
	assert.ErrorIs(t, h.session.Renegotiate(), ErrSessionClosed)
	assert.ErrorIs(t, h.session.AddTrack(NewLocalTrack(TrackKindAudio, nil)), ErrSessionClosed)
}

func TestSessionForwardsLocalCandidates(t *testing.T) {
	h := newSessionHarness(t, true)
	h.peer.callbacks.OnICECandidate(candidate("local-1"))

	sent := h.signaler.Take()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.MessageICECandidate, sent[0].Type)
	assert.Equal(t, "remote", sent[0].TargetID)
	assert.Equal(t, "local-1", sent[0].Candidate.Candidate)
}

func TestSessionStateHookKeepsOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		var mu sync.Mutex
		var seen []SessionState
		factory := &fakeFactory{}

		session, err := newPeerSession(sessionConfig{
			roomID:    "ROOM01",
			remoteID:  "remote",
			initiator: true,
			signaler:  &fakeSignaler{},
			log:       slogdiscard.NewDiscardLogger(),
			onStateChange: func(_ string, state SessionState) {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, state)
			},
		}, factory)
		require.NoError(t, err)

		require.NoError(t, session.Start())
		require.NoError(t, session.HandleAnswer(answer("answer-1")))
		session.HandleConnectionState(webrtc.PeerConnectionStateFailed)
		session.HandleConnectionState(webrtc.PeerConnectionStateFailed)

		want := []SessionState{StateOffering, StateConnected, StateFailed}
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(seen) == len(want)
		}, time.Second, time.Millisecond)

		mu.Lock()
		assert.Equal(t, want, seen)
		mu.Unlock()
	}
}
