package models

import (
	"time"
)

type EventStatus string

const (
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
)

type Event struct {
	ID     int64       `json:"id"`
	Title  string      `json:"title"`
	Venue  string      `json:"venue"`
	Date   time.Time   `json:"date"`
	Status EventStatus `json:"status"`
}
