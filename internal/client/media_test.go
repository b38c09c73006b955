package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/lib/logger/handlers/slogdiscard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaStartAccessDenied(t *testing.T) {
	source := &fakeSource{err: errors.New("permission dismissed")}
	m := NewMediaController(slogdiscard.NewDiscardLogger(), source, &fakeSignaler{})

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMediaAccessDenied)
	assert.Empty(t, m.LocalTracks())

	err = m.StartScreenShare(context.Background())
	assert.ErrorIs(t, err, domain.ErrMediaAccessDenied)
}

func TestMediaToggleBeforeStart(t *testing.T) {
	m := NewMediaController(slogdiscard.NewDiscardLogger(), &fakeSource{}, &fakeSignaler{})
	assert.ErrorIs(t, m.SetAudioEnabled(false), ErrNoLocalMedia)
	assert.ErrorIs(t, m.SetVideoEnabled(false), ErrNoLocalMedia)
}

func TestMediaToggleDoesNotRenegotiate(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.joinAs(t, "a", participant("a", 0), participant("b", time.Second))
	h.connectAll(t)
	peer := h.factory.Last()
	offers := peer.Offers()

	require.NoError(t, h.media.SetAudioEnabled(false))
	sent := h.signaler.Take()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.MessageUserMediaChanged, sent[0].Type)
	require.NotNil(t, sent[0].MediaState)
	assert.Equal(t, domain.MediaState{Audio: false, Video: true}, *sent[0].MediaState)

	require.NoError(t, h.media.SetVideoEnabled(false))
	sent = h.signaler.Take()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.MediaState{}, *sent[0].MediaState)

	assert.Equal(t, offers, peer.Offers())
	for _, track := range h.media.LocalTracks() {
		assert.False(t, track.Enabled())
		assert.True(t, peer.HasTrack(track.ID))
	}
}

func TestMediaScreenShareRenegotiatesOncePerSession(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.joinAs(t, "a", participant("a", 0), participant("b", time.Second), participant("c", 2*time.Second))
	h.connectAll(t)
	peers := append([]*fakePeer(nil), h.factory.peers...)
	require.Len(t, peers, 2)
	before := []int{peers[0].Offers(), peers[1].Offers()}

	require.NoError(t, h.media.StartScreenShare(context.Background()))
	screen := h.source.screen
	require.NotNil(t, screen)

	sent := h.signaler.Take()
	assert.Equal(t, 2, countType(sent, domain.MessageOffer))
	assert.Equal(t, 1, countType(sent, domain.MessageScreenShareStarted))
	assert.True(t, h.media.MediaState().ScreenShare)
	for i, peer := range peers {
		assert.Equal(t, before[i]+1, peer.Offers())
		assert.True(t, peer.HasTrack(screen.ID))
	}

	assert.ErrorIs(t, h.media.StartScreenShare(context.Background()), ErrAlreadySharing)

	for _, s := range h.orch.Sessions() {
		require.NoError(t, s.HandleAnswer(answer("screen-answer")))
	}

	require.NoError(t, h.media.StopScreenShare())
	sent = h.signaler.Take()
	assert.Equal(t, 2, countType(sent, domain.MessageOffer))
	assert.Equal(t, 1, countType(sent, domain.MessageScreenShareStopped))
	assert.True(t, screen.Stopped())
	assert.False(t, h.media.MediaState().ScreenShare)
	for i, peer := range peers {
		assert.Equal(t, before[i]+2, peer.Offers())
		assert.False(t, peer.HasTrack(screen.ID))
	}

	require.NoError(t, h.media.StopScreenShare())
	assert.Empty(t, h.signaler.Take())
}

func TestMediaScreenEndedByPlatform(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.joinAs(t, "a", participant("a", 0), participant("b", time.Second))
	h.connectAll(t)
	peer := h.factory.Last()

	require.NoError(t, h.media.StartScreenShare(context.Background()))
	require.NoError(t, h.orch.Session("b").HandleAnswer(answer("screen-answer")))
	h.signaler.Take()

	h.source.screen.Stop()

	sent := h.signaler.Take()
	assert.Equal(t, 1, countType(sent, domain.MessageScreenShareStopped))
	assert.Equal(t, 1, countType(sent, domain.MessageOffer))
	assert.False(t, peer.HasTrack(h.source.screen.ID))
	assert.False(t, h.media.MediaState().ScreenShare)
}

func TestMediaLateSessionReceivesScreen(t *testing.T) {
	h := newOrchestratorHarness(t)
	a, b := participant("a", 0), participant("b", time.Second)
	h.joinAs(t, "a", a, b)
	h.connectAll(t)
	require.NoError(t, h.media.StartScreenShare(context.Background()))

	c := participant("c", 2*time.Second)
	require.NoError(t, h.orch.HandleMessage(domain.SignalMessage{
		Type:         domain.MessageUserJoined,
		SenderID:     "c",
		Participants: []domain.Participant{a, b, c},
	}))

	peer := h.factory.Last()
	assert.True(t, peer.HasTrack(h.source.screen.ID))
	assert.Len(t, h.media.LocalTracks(), 3)
}
