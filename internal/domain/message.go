package domain

import "time"

type MessageID int64

// MessageDraft is what a sender submits; it has no id or timestamp until the
// store assigns them.
type MessageDraft struct {
	ChannelID ChannelID
	AuthorID  UserID
	Content   string
}

// Message is immutable once persisted. ID is the per-channel ordering key.
type Message struct {
	ID        MessageID `json:"id"`
	ChannelID ChannelID `json:"channelId"`
	AuthorID  UserID    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
