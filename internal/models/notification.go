package models

import "time"

type Notification struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"documentId"`
	Audience   Visibility `json:"audience"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"createdAt"`
}
