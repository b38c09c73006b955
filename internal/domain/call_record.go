package domain

import (
	"time"

	"github.com/google/uuid"
)

type CallType string

const (
	CallTypeOutgoing CallType = "outgoing"
	CallTypeIncoming CallType = "incoming"
)

// CallRecord is one participant's view of a call, written to the history sink.
type CallRecord struct {
	ID           uuid.UUID  `json:"id" msgpack:"id"`
	UserID       string     `json:"userId" msgpack:"user_id"`
	RoomID       string     `json:"roomId" msgpack:"room_id"`
	Type         CallType   `json:"type" msgpack:"type"`
	StartTime    time.Time  `json:"startTime" msgpack:"start_time"`
	EndTime      *time.Time `json:"endTime,omitempty" msgpack:"end_time"`
	Duration     int64      `json:"duration,omitempty" msgpack:"duration"`
	Participants []string   `json:"participants" msgpack:"participants"`
}

func NewCallRecord(userID, roomID string, callType CallType, start time.Time) *CallRecord {
	return &CallRecord{
		ID:           uuid.New(),
		UserID:       userID,
		RoomID:       roomID,
		Type:         callType,
		StartTime:    start.UTC(),
		Participants: []string{},
	}
}

// Finish stamps the end of the call. Duration is kept in whole seconds.
func (r *CallRecord) Finish(end time.Time, participants []string) {
	end = end.UTC()
	r.EndTime = &end
	r.Duration = int64(end.Sub(r.StartTime) / time.Second)
	if participants != nil {
		r.Participants = participants
	}
}
