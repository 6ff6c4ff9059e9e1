// Package store persists specification documents in PostgreSQL. Every query
// runs through the metrics recorder so the rolling latency and success-rate
// aggregates reflect real database traffic.
package store

import (
	"time"
)

// Spec is a stored specification document.
type Spec struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Status    string            `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Spec status values.
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusArchived = "archived"
)
