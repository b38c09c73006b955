package domain

import "time"

type ChatSender struct {
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// ChatMessage is immutable once appended to a room. ID is assigned by the
// room in relay order.
type ChatMessage struct {
	ID        int64      `json:"id"`
	Text      string     `json:"text"`
	Sender    ChatSender `json:"sender"`
	Timestamp time.Time  `json:"timestamp"`
}

func SenderFromUser(info UserInfo) ChatSender {
	return ChatSender{
		Name:   info.Name,
		Email:  info.Email,
		Avatar: info.Avatar,
	}
}
