package domain

import "time"

// Project is the owning container for tickets.
type Project struct {
	ID        string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
