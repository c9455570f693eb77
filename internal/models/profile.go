package models

import "time"

// Profile holds per-owner account flags. ID is the owner identifier.
type Profile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name,omitempty"`
	IsPro     bool      `json:"is_pro"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
