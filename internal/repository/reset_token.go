package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/skillfolio/internal/crud"
	"github.com/templui/skillfolio/internal/model"
)

type ResetTokenRepository interface {
	Create(ctx context.Context, token *model.ResetToken) error
	ByHash(ctx context.Context, hash string) (*model.ResetToken, error)
	Consume(ctx context.Context, hash string, now time.Time) (*model.ResetToken, error)
	DeleteForEmail(ctx context.Context, email string) error
	WithTx(tx *crud.Tx) ResetTokenRepository
}

type resetTokenRepository struct {
	tokens *crud.Store
}

func NewResetTokenRepository(db *sqlx.DB, opts ...crud.Option) ResetTokenRepository {
	return &resetTokenRepository{tokens: crud.New(db, "password_resets", opts...)}
}

func (r *resetTokenRepository) WithTx(tx *crud.Tx) ResetTokenRepository {
	return &resetTokenRepository{tokens: r.tokens.Using(tx)}
}

func (r *resetTokenRepository) Create(ctx context.Context, token *model.ResetToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = model.Now()
	}
	id, err := r.tokens.Insert(ctx, crud.Fields{
		"email":      token.Email,
		"token_hash": token.TokenHash,
		"expires_at": token.ExpiresAt,
		"created_at": token.CreatedAt,
	})
	if err != nil {
		return translate(err, "reset token", token.Email)
	}
	token.ID = id
	return nil
}

func (r *resetTokenRepository) ByHash(ctx context.Context, hash string) (*model.ResetToken, error) {
	row, err := r.tokens.FindOne(ctx, crud.Query{Where: crud.Conditions{crud.Eq("token_hash", hash)}})
	if err != nil {
		return nil, translate(err, "reset token", "")
	}
	return model.ResetTokenFromRow(row)
}

// Consume marks an unused, unexpired token as used. The UPDATE only matches a
// redeemable token, so of two concurrent calls at most one succeeds; the other
// gets NotFound.
func (r *resetTokenRepository) Consume(ctx context.Context, hash string, now time.Time) (*model.ResetToken, error) {
	n, err := r.tokens.Update(ctx, crud.Fields{"used_at": now}, crud.Conditions{
		crud.Eq("token_hash", hash),
		crud.IsNull("used_at"),
		crud.Where("expires_at", crud.OpGt, now),
	})
	if err := affected(n, err, "reset token", ""); err != nil {
		return nil, err
	}
	return r.ByHash(ctx, hash)
}

// DeleteForEmail drops the email's outstanding tokens so only the newest
// request can be redeemed.
func (r *resetTokenRepository) DeleteForEmail(ctx context.Context, email string) error {
	_, err := r.tokens.Delete(ctx, crud.Conditions{crud.Eq("email", email), crud.IsNull("used_at")})
	return err
}
