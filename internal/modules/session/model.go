package session

import (
	"time"

	"github.com/google/uuid"
)

// Session is a shop's installation: the offline access token obtained during
// OAuth, keyed by the myshopify domain.
type Session struct {
	ID          uuid.UUID `json:"id"`
	Shop        string    `json:"shop"`
	AccessToken string    `json:"-"`
	Scope       string    `json:"scope"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
