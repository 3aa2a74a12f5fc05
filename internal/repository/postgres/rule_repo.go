package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/fertilizer-advisor/internal/domain"
	"github.com/prn-tf/fertilizer-advisor/internal/repository"
)

// ruleRepository implements repository.RuleRepository.
type ruleRepository struct {
	db *DB
}

// NewRuleRepository creates a new PostgreSQL rule repository.
func NewRuleRepository(db *DB) repository.RuleRepository {
	return &ruleRepository{db: db}
}

const selectRules = `SELECT id, crop, n, p, k, fertilizer FROM recommendations`

// List returns all rules ordered by ID.
func (r *ruleRepository) List(ctx context.Context) ([]*domain.Rule, error) {
	return r.query(ctx, selectRules+` ORDER BY id`)
}

// ListByCrop returns the rules for a crop ordered by ID.
func (r *ruleRepository) ListByCrop(ctx context.Context, crop string) ([]*domain.Rule, error) {
	return r.query(ctx, selectRules+` WHERE lower(trim(crop)) = lower(trim($1)) ORDER BY id`, crop)
}

func (r *ruleRepository) query(ctx context.Context, sql string, args ...any) ([]*domain.Rule, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list rules: %v", repository.ErrUnavailable, err)
	}

	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Rule, error) {
		rule := &domain.Rule{}
		err := row.Scan(&rule.ID, &rule.Crop, &rule.N, &rule.P, &rule.K, &rule.Fertilizer)
		return rule, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan rules: %v", repository.ErrUnavailable, err)
	}
	return rules, nil
}

// Crops returns the distinct crops in order of first appearance.
func (r *ruleRepository) Crops(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT crop FROM recommendations GROUP BY crop ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list crops: %v", repository.ErrUnavailable, err)
	}

	crops, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan crops: %v", repository.ErrUnavailable, err)
	}
	return crops, nil
}

// Count returns the number of stored rules.
func (r *ruleRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM recommendations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count rules: %v", repository.ErrUnavailable, err)
	}
	return count, nil
}

// CreateBatch inserts rules in slice order within a single transaction.
func (r *ruleRepository) CreateBatch(ctx context.Context, rules []*domain.Rule) error {
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return err
		}
	}

	err := r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rule := range rules {
			err := tx.QueryRow(ctx,
				`INSERT INTO recommendations (crop, n, p, k, fertilizer) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
				rule.Crop, rule.N, rule.P, rule.K, rule.Fertilizer,
			).Scan(&rule.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to insert rules: %v", repository.ErrUnavailable, err)
	}
	return nil
}

// Ensure ruleRepository implements repository.RuleRepository
var _ repository.RuleRepository = (*ruleRepository)(nil)
