package entity

import "time"

type Note struct {
	ID        uint64      `json:"id"`
	TaskID    uint64      `json:"task"`
	Content   string      `json:"content"`
	CreatedBy *PublicUser `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
}
