package chat

import "time"

// AnonymousUser 未提供 userId 的会话归属，不建立画像。
const AnonymousUser = "anonymous"

// Session captures one anonymous counseling conversation.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	PersonaID string    `json:"personaId"`
	CreatedAt time.Time `json:"createdAt"`
}
