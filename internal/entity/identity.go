package entity

import (
	"context"
	"time"
)

// Identity is a sender persona. The oldest active identity is the default sender.
type Identity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Company   string    `json:"company"`
	Email     string    `json:"email,omitempty"`
	Website   string    `json:"website,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type IdentityRepositoryInterface interface {
	FindByID(ctx context.Context, id string) (*Identity, error)
	FirstActive(ctx context.Context) (*Identity, error)
}
