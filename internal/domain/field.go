package domain

import "time"

// FieldOfStudy is a reference entity shared by many identified users.
type FieldOfStudy struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}
