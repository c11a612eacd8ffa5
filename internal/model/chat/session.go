package chat

import "time"

// Session describes a conversation exposed to the shell.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
