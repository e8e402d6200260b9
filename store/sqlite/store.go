// Package sqlite provides a SQLite-backed continuation store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/simon020286/continuation-router/models"
	"github.com/simon020286/continuation-router/store"
	"github.com/simon020286/continuation-router/store/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists continuations in SQLite
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite continuation store and applies embedded migrations.
func Open(path string, opts ...store.Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: store.NewOptions(opts...).Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Create inserts a new continuation at version 1.
func (s *Store) Create(ctx context.Context, c *models.Continuation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("continuation id is required")
	}
	now := fromMillis(toMillis(s.now()))
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	createdAt = fromMillis(toMillis(createdAt))

	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR IGNORE INTO continuations (
		   id, owner, payer,
		   initial_mint, initial_amount,
		   input, amount_in_mint, amount_in,
		   steps_left, output, output_initial_balance,
		   minimum_out_mint, minimum_out,
		   version, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		c.ID, string(c.Owner), string(c.Payer),
		string(c.InitialAmountIn.Mint), int64(c.InitialAmountIn.Amount),
		string(c.Input), string(c.AmountIn.Mint), int64(c.AmountIn.Amount),
		int64(c.StepsLeft), string(c.Output), int64(c.OutputInitialBalance),
		string(c.MinimumAmountOut.Mint), int64(c.MinimumAmountOut.Amount),
		toMillis(createdAt), toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("insert continuation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert continuation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrExists, c.ID)
	}
	c.Version = 1
	c.CreatedAt = createdAt
	c.UpdatedAt = now
	return nil
}

const selectColumns = `id, owner, payer,
	initial_mint, initial_amount,
	input, amount_in_mint, amount_in,
	steps_left, output, output_initial_balance,
	minimum_out_mint, minimum_out,
	version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContinuation(row rowScanner) (models.Continuation, error) {
	var (
		c                                    models.Continuation
		owner, payer, initialMint, input     string
		amountInMint, output, minimumOutMint string
		initialAmount, amountIn, stepsLeft   int64
		outputInitial, minimumOut, version   int64
		createdAt, updatedAt                 int64
	)
	if err := row.Scan(
		&c.ID, &owner, &payer,
		&initialMint, &initialAmount,
		&input, &amountInMint, &amountIn,
		&stepsLeft, &output, &outputInitial,
		&minimumOutMint, &minimumOut,
		&version, &createdAt, &updatedAt,
	); err != nil {
		return models.Continuation{}, err
	}
	c.Owner = models.Key(owner)
	c.Payer = models.Key(payer)
	c.InitialAmountIn = models.NewTokenAmount(models.Key(initialMint), uint64(initialAmount))
	c.Input = models.Key(input)
	c.AmountIn = models.NewTokenAmount(models.Key(amountInMint), uint64(amountIn))
	c.StepsLeft = uint16(stepsLeft)
	c.Output = models.Key(output)
	c.OutputInitialBalance = uint64(outputInitial)
	c.MinimumAmountOut = models.NewTokenAmount(models.Key(minimumOutMint), uint64(minimumOut))
	c.Version = uint64(version)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

// Get loads one continuation.
func (s *Store) Get(ctx context.Context, id string) (models.Continuation, error) {
	if err := ctx.Err(); err != nil {
		return models.Continuation{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM continuations WHERE id = ?`, id)
	c, err := scanContinuation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Continuation{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return models.Continuation{}, fmt.Errorf("get continuation: %w", err)
	}
	return c, nil
}

// Save writes the mutable fields if the stored version still matches c.Version.
func (s *Store) Save(ctx context.Context, c *models.Continuation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := fromMillis(toMillis(s.now()))
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE continuations SET
		   input = ?, amount_in_mint = ?, amount_in = ?,
		   steps_left = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		string(c.Input), string(c.AmountIn.Mint), int64(c.AmountIn.Amount),
		int64(c.StepsLeft), toMillis(now),
		c.ID, int64(c.Version),
	)
	if err != nil {
		return fmt.Errorf("update continuation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update continuation: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, c.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", store.ErrConflict, c.ID)
	}
	c.Version++
	c.UpdatedAt = now
	return nil
}

// Delete removes a continuation.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM continuations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete continuation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete continuation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

// ListStale returns continuations not updated since before, oldest first.
func (s *Store) ListStale(ctx context.Context, before time.Time) ([]models.Continuation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM continuations WHERE updated_at < ? ORDER BY updated_at, id`,
		toMillis(before),
	)
	if err != nil {
		return nil, fmt.Errorf("list stale continuations: %w", err)
	}
	defer rows.Close()

	var out []models.Continuation
	for rows.Next() {
		c, err := scanContinuation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan continuation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stale continuations: %w", err)
	}
	return out, nil
}
