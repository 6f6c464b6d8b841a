package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/tutor-marketplace/internal/model"
)

// AdjustPoints adds delta (negative to deduct) to the user's balance, never
// letting it drop below zero, and recomputes the level. MySQL evaluates
// single-table SET assignments left to right, so the CASE sees the new
// balance.
func (r *UserRepo) AdjustPoints(ctx context.Context, userID uint64, delta int) (model.PointsBalance, error) {
	var out model.PointsBalance

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return out, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE users SET
			points = GREATEST(CAST(points AS SIGNED) + ?, 0),
			level = CASE
				WHEN points >= 1000 THEN 'Platinum'
				WHEN points >= 500 THEN 'Gold'
				WHEN points >= 200 THEN 'Silver'
				ELSE 'Bronze' END
		WHERE id=?`, delta, userID)
	ok, err := applied(res, err)
	if err != nil {
		return out, fmt.Errorf("adjust points: %w", err)
	}
	if !ok {
		return out, ErrNotFound
	}
	if err := tx.GetContext(ctx, &out,
		"SELECT id, first_name, last_name, email, points, level FROM users WHERE id=?", userID); err != nil {
		return out, err
	}
	if err := tx.Commit(); err != nil {
		return out, err
	}
	committed = true
	return out, nil
}

// Points reads a user's balance.
func (r *UserRepo) Points(ctx context.Context, userID uint64) (model.PointsBalance, error) {
	var out model.PointsBalance
	err := r.DB.GetContext(ctx, &out,
		"SELECT id, first_name, last_name, email, points, level FROM users WHERE id=?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return out, ErrNotFound
	}
	return out, err
}

// LevelCounts returns how many users sit in each level. Levels without
// users are reported as zero.
func (r *UserRepo) LevelCounts(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Level string `db:"level"`
		N     int    `db:"n"`
	}{}
	if err := r.DB.SelectContext(ctx, &rows, "SELECT level, COUNT(*) AS n FROM users GROUP BY level"); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(model.Levels))
	for _, l := range model.Levels {
		out[l] = 0
	}
	for _, row := range rows {
		out[row.Level] = row.N
	}
	return out, nil
}

// ListByPoints returns users ordered by balance, highest first.
func (r *UserRepo) ListByPoints(ctx context.Context, limit, offset int) ([]model.PointsBalance, error) {
	out := []model.PointsBalance{}
	err := r.DB.SelectContext(ctx, &out, `SELECT id, first_name, last_name, email, points, level
		FROM users ORDER BY points DESC, id ASC LIMIT ? OFFSET ?`, limit, offset)
	return out, err
}
