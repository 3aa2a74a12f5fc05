package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prn-tf/fertilizer-advisor/internal/domain"
	"github.com/prn-tf/fertilizer-advisor/internal/repository"
)

// ruleRepository implements repository.RuleRepository for SQLite.
type ruleRepository struct {
	db *DB
}

// NewRuleRepository creates a new SQLite rule repository.
func NewRuleRepository(db *DB) repository.RuleRepository {
	return &ruleRepository{db: db}
}

const selectRules = `SELECT id, crop, n, p, k, fertilizer FROM recommendations`

// List returns all rules ordered by ID.
func (r *ruleRepository) List(ctx context.Context) ([]*domain.Rule, error) {
	rows, err := r.db.QueryContext(ctx, selectRules+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list rules: %v", repository.ErrUnavailable, err)
	}
	return scanRules(rows)
}

// ListByCrop returns the rules for a crop ordered by ID.
func (r *ruleRepository) ListByCrop(ctx context.Context, crop string) ([]*domain.Rule, error) {
	rows, err := r.db.QueryContext(ctx,
		selectRules+` WHERE lower(trim(crop)) = lower(trim(?)) ORDER BY id`, crop)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list rules for crop: %v", repository.ErrUnavailable, err)
	}
	return scanRules(rows)
}

// Crops returns the distinct crops in order of first appearance.
func (r *ruleRepository) Crops(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT crop FROM recommendations GROUP BY crop ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list crops: %v", repository.ErrUnavailable, err)
	}
	defer rows.Close()

	var crops []string
	for rows.Next() {
		var crop string
		if err := rows.Scan(&crop); err != nil {
			return nil, fmt.Errorf("%w: failed to scan crop: %v", repository.ErrUnavailable, err)
		}
		crops = append(crops, crop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate crops: %v", repository.ErrUnavailable, err)
	}
	return crops, nil
}

// Count returns the number of stored rules.
func (r *ruleRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recommendations`).Scan(&count); err != nil {
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

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO recommendations (crop, n, p, k, fertilizer) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, rule := range rules {
			result, err := stmt.ExecContext(ctx, rule.Crop, rule.N, rule.P, rule.K, rule.Fertilizer)
			if err != nil {
				return err
			}
			id, err := result.LastInsertId()
			if err != nil {
				return err
			}
			rule.ID = id
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to insert rules: %v", repository.ErrUnavailable, err)
	}
	return nil
}

// scanRules reads every row and closes rows.
func scanRules(rows *sql.Rows) ([]*domain.Rule, error) {
	defer rows.Close()

	var rules []*domain.Rule
	for rows.Next() {
		rule := &domain.Rule{}
		if err := rows.Scan(&rule.ID, &rule.Crop, &rule.N, &rule.P, &rule.K, &rule.Fertilizer); err != nil {
			return nil, fmt.Errorf("%w: failed to scan rule: %v", repository.ErrUnavailable, err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate rules: %v", repository.ErrUnavailable, err)
	}
	return rules, nil
}

// Ensure ruleRepository implements repository.RuleRepository
var _ repository.RuleRepository = (*ruleRepository)(nil)
