package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

const silenceFrame = 20 * time.Millisecond

// opusSilence is a single Opus frame that decodes to 20ms of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SilentSource produces real pion tracks without capture hardware: the audio
// track carries Opus silence and the video tracks stay idle. Headless
// participants use it to take part in negotiation.
type SilentSource struct {
	log      *slog.Logger
	streamID string
}

func NewSilentSource(log *slog.Logger) *SilentSource {
	if log == nil {
		log = slog.Default()
	}
	return &SilentSource{log: log, streamID: uuid.New().String()}
}

func (s *SilentSource) OpenUserMedia(ctx context.Context) (*LocalTrack, *LocalTrack, error) {
	audioLocal, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio-"+uuid.New().String(), s.streamID,
	)
	if err != nil {
		return nil, nil, err
	}
	videoLocal, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video-"+uuid.New().String(), s.streamID,
	)
	if err != nil {
		return nil, nil, err
	}

	audio := NewLocalTrack(TrackKindAudio, audioLocal)
	video := NewLocalTrack(TrackKindVideo, videoLocal)
	go s.pumpSilence(ctx, audio)
	return audio, video, nil
}

func (s *SilentSource) OpenScreen(context.Context) (*LocalTrack, error) {
	screenLocal, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"screen-"+uuid.New().String(), "screen-"+s.streamID,
	)
	if err != nil {
		return nil, err
	}
	return NewLocalTrack(TrackKindScreen, screenLocal), nil
}

func (s *SilentSource) pumpSilence(ctx context.Context, track *LocalTrack) {
	ticker := time.NewTicker(silenceFrame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if track.Stopped() {
				return
			}
			if err := track.WriteSample(media.Sample{Data: opusSilence, Duration: silenceFrame}); err != nil {
				s.log.Debug("silence write failed", slog.String("track_id", track.ID))
			}
		}
	}
}
