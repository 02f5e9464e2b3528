package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"study-battle/internal/domain"
)

// SetLoader loads question-set JSONB from Postgres. Stored sets use the same
// file format players upload, so they go through the same strict validation.
type SetLoader struct {
	pool *pgxpool.Pool
}

func NewSetLoader(pool *pgxpool.Pool) *SetLoader {
	return &SetLoader{pool: pool}
}

func (l *SetLoader) LoadSet(ctx context.Context, setID string) ([]domain.Question, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_sets WHERE id=$1`, setID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionSetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load question set: %w", err)
	}
	return domain.ParseQuestionSet(raw)
}
