package models

import (
	"time"

	"github.com/google/uuid"
)

// ID represents a unique identifier
type ID string

// GenerateUUID creates a new UUID
func GenerateUUID() ID {
	return ID(uuid.New().String())
}

// NewID creates an ID from string
func NewID(id string) (ID, error) {
	_, err := uuid.Parse(id)
	if err != nil {
		return "", err
	}
	return ID(id), nil
}

// String returns string representation
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the ID is empty
func (id ID) IsZero() bool {
	return id == ""
}

// Timestamps represents creation and update times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTimestamps creates new timestamps
func NewTimestamps() Timestamps {
	now := time.Now().UTC()
	return Timestamps{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Update updates the UpdatedAt timestamp
func (t Timestamps) Update() Timestamps {
	t.UpdatedAt = time.Now().UTC()
	return t
}
