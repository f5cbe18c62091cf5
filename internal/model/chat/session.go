package chat

import (
	"time"

	"github.com/eunoia/backend/internal/model/wellbeing"
)

// Session binds one user, one log snapshot and one growing turn history.
// At most one live session exists per UserID.
type Session struct {
	ID        string             `json:"sessionId"`
	UserID    string             `json:"userId"`
	Snapshot  wellbeing.Snapshot `json:"logs"`
	History   []Turn             `json:"history"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
