package account

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tokens is the store accessor for session token rows. Every mutation is
// scoped to a single row except the bulk deletes, which are single
// statements; no method takes locks.
type Tokens interface {
	repository.Repository[*Token]

	Create(ctx context.Context, record *Token, criteria ...repository.InsertCriteria) (*Token, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Token, criteria ...repository.InsertCriteria) (*Token, error)

	GetByToken(ctx context.Context, token string) (*Token, error)
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*Token, error)

	Touch(ctx context.Context, token string, usedAt time.Time) error
	TouchTx(ctx context.Context, tx bun.IDB, token string, usedAt time.Time) error

	DeleteByToken(ctx context.Context, token string) error
	DeleteByTokenTx(ctx context.Context, tx bun.IDB, token string) error

	DeleteForUser(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error)

	DeleteLastUsedBefore(ctx context.Context, cutoff time.Time) (int, error)
	DeleteLastUsedBeforeTx(ctx context.Context, tx bun.IDB, cutoff time.Time) (int, error)
}

type tokens struct {
	repository.Repository[*Token]
	db *bun.DB
}

var (
	_ Tokens                        = (*tokens)(nil)
	_ repository.Repository[*Token] = (*tokens)(nil)
)

func NewTokensRepository(db *bun.DB) Tokens {
	repo := repository.NewRepository[*Token](db, repository.ModelHandlers[*Token]{
		NewRecord: func() *Token { return &Token{} },
		GetID: func(t *Token) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Token, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &tokens{
		Repository: repo,
		db:         db,
	}
}

func (r *tokens) Create(ctx context.Context, record *Token, criteria ...repository.InsertCriteria) (*Token, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *tokens) CreateTx(ctx context.Context, tx bun.IDB, record *Token, criteria ...repository.InsertCriteria) (*Token, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (r *tokens) GetByToken(ctx context.Context, token string) (*Token, error) {
	return r.GetByTokenTx(ctx, r.db, token)
}

func (r *tokens) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*Token, error) {
	if token == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &Token{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (r *tokens) Touch(ctx context.Context, token string, usedAt time.Time) error {
	return r.TouchTx(ctx, r.db, token, usedAt)
}

// TouchTx refreshes last_used_at, keeping it monotonically non decreasing.
func (r *tokens) TouchTx(ctx context.Context, tx bun.IDB, token string, usedAt time.Time) error {
	res, err := tx.NewUpdate().
		Model((*Token)(nil)).
		Set("last_used_at = ?", usedAt).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.last_used_at <= ?", usedAt).
		Exec(ctx)
	if err != nil {
		return err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return repository.NewRecordNotFound()
	}

	return nil
}

func (r *tokens) DeleteByToken(ctx context.Context, token string) error {
	return r.DeleteByTokenTx(ctx, r.db, token)
}

// DeleteByTokenTx is idempotent: deleting an absent row is not an error.
func (r *tokens) DeleteByTokenTx(ctx context.Context, tx bun.IDB, token string) error {
	_, err := tx.NewDelete().
		Model((*Token)(nil)).
		Where("?TableAlias.token = ?", token).
		Exec(ctx)
	return err
}

func (r *tokens) DeleteForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.DeleteForUserTx(ctx, r.db, userID)
}

func (r *tokens) DeleteForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	res, err := tx.NewDelete().
		Model((*Token)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return affectedRows(res)
}

func affectedRows(res sql.Result) (int, error) {
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

func (r *tokens) DeleteLastUsedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return r.DeleteLastUsedBeforeTx(ctx, r.db, cutoff)
}

func (r *tokens) DeleteLastUsedBeforeTx(ctx context.Context, tx bun.IDB, cutoff time.Time) (int, error) {
	res, err := tx.NewDelete().
		Model((*Token)(nil)).
		Where("?TableAlias.last_used_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return affectedRows(res)
}
