package domain

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"sync"
	"time"
)

const (
	roomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// Room is the in-memory state of one call. Every method below expects the
// caller to hold Mutex.
type Room struct {
	Mutex      sync.Mutex
	ID         string
	CreatedAt  time.Time
	EmptySince time.Time

	participants  map[string]*Participant
	order         []string
	messages      []ChatMessage
	nextMessageID int64
	backlog       int
	deleted       bool
}

// NewRoom constructs an empty room. It must receive its first participant
// before the room is published to other goroutines.
func NewRoom(id string, backlog int, now time.Time) *Room {
	return &Room{
		ID:           id,
		CreatedAt:    now.UTC(),
		participants: make(map[string]*Participant),
		backlog:      backlog,
	}
}

func ValidateRoomID(id string) error {
	if !roomIDPattern.MatchString(id) {
		return ErrInvalidRoomID
	}
	return nil
}

// GenerateRoomCode returns a short uppercase code such as "K3X9QA".
func GenerateRoomCode() string {
	code := make([]byte, roomCodeLength)
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("room code: " + err.Error())
		}
		code[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(code)
}

func (r *Room) Len() int {
	return len(r.participants)
}

func (r *Room) Participant(connectionID string) (*Participant, bool) {
	p, ok := r.participants[connectionID]
	return p, ok
}

func (r *Room) AddParticipant(p *Participant) {
	if _, ok := r.participants[p.ConnectionID]; ok {
		return
	}
	r.participants[p.ConnectionID] = p
	r.order = append(r.order, p.ConnectionID)
	r.EmptySince = time.Time{}
}

func (r *Room) RemoveParticipant(connectionID string) (*Participant, bool) {
	p, ok := r.participants[connectionID]
	if !ok {
		return nil, false
	}
	delete(r.participants, connectionID)
	for i, id := range r.order {
		if id == connectionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return p, true
}

// Participants returns copies in join order.
func (r *Room) Participants() []Participant {
	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.participants[id])
	}
	return out
}

func (r *Room) Host() *Participant {
	for _, id := range r.order {
		if p := r.participants[id]; p.IsHost {
			return p
		}
	}
	return nil
}

// Oldest returns the participant with the earliest JoinedAt.
func (r *Room) Oldest() *Participant {
	var oldest *Participant
	for _, id := range r.order {
		p := r.participants[id]
		if oldest == nil || p.JoinedBefore(*oldest) {
			oldest = p
		}
	}
	return oldest
}

// AppendMessage assigns the next id and trims the backlog.
func (r *Room) AppendMessage(text string, sender ChatSender, ts time.Time) ChatMessage {
	r.nextMessageID++
	msg := ChatMessage{
		ID:        r.nextMessageID,
		Text:      text,
		Sender:    sender,
		Timestamp: ts.UTC(),
	}
	r.messages = append(r.messages, msg)
	if r.backlog > 0 && len(r.messages) > r.backlog {
		r.messages = append([]ChatMessage(nil), r.messages[len(r.messages)-r.backlog:]...)
	}
	return msg
}

func (r *Room) Messages() []ChatMessage {
	out := make([]ChatMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

// IsExpired reports whether the room has been empty for at least grace.
func (r *Room) IsExpired(now time.Time, grace time.Duration) bool {
	if len(r.participants) > 0 || r.EmptySince.IsZero() {
		return false
	}
	return now.Sub(r.EmptySince) >= grace
}

func (r *Room) MarkDeleted() {
	r.deleted = true
}

func (r *Room) IsDeleted() bool {
	return r.deleted
}
