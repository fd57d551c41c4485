package model

import (
	"fmt"
	"time"

	"github.com/templui/skillfolio/internal/hydrate"
)

// ResetToken is a stored password reset request. Only the SHA-256 of the
// token mailed to the user is kept.
type ResetToken struct {
	ID        int64
	Email     string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (t *ResetToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *ResetToken) IsUsed() bool {
	return t.UsedAt != nil
}

// IsValid reports whether the token can still be redeemed at now.
func (t *ResetToken) IsValid(now time.Time) bool {
	return !t.IsExpired(now) && !t.IsUsed()
}

func ResetTokenFromRow(row hydrate.Row) (*ResetToken, error) {
	r := &rowReader{row: row}
	t := &ResetToken{
		ID:        r.int64("id"),
		Email:     r.string("email"),
		TokenHash: r.string("token_hash"),
		ExpiresAt: r.time("expires_at"),
		UsedAt:    r.nullTime("used_at"),
		CreatedAt: r.time("created_at"),
	}
	if r.err != nil {
		return nil, fmt.Errorf("hydrate reset token: %w", r.err)
	}
	return t, nil
}
