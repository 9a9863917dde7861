package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/callpulse/call-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All price levels are stored as NUMERIC for exact decimal precision.
// Per-call row updates serialize concurrent writers at the database level.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const callColumns = `id, symbol, trade_type, call_date,
	entry_price::TEXT, target1::TEXT, target2::TEXT, target3::TEXT, stop_loss::TEXT,
	target1_hit, target2_hit, target3_hit, stop_loss_hit,
	target1_hit_date, target2_hit_date, target3_hit_date, stop_loss_hit_date, hit_date,
	current_price::TEXT, last_checked, status, created_at`

func (s *PostgresStore) CreateCall(ctx context.Context, c *model.TradingCall) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trading_calls
		 (id, symbol, trade_type, call_date,
		  entry_price, target1, target2, target3, stop_loss,
		  target1_hit, target2_hit, target3_hit, stop_loss_hit,
		  target1_hit_date, target2_hit_date, target3_hit_date, stop_loss_hit_date, hit_date,
		  current_price, last_checked, status, created_at)
		 VALUES ($1, $2, $3, $4,
		         $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC,
		         $10, $11, $12, $13,
		         $14, $15, $16, $17, $18,
		         $19::NUMERIC, $20, $21, $22)`,
		c.ID, c.Symbol, c.TradeType, c.CallDate,
		c.EntryPrice.String(), c.Target1.String(), c.Target2.String(),
		c.Target3.String(), c.StopLoss.String(),
		c.Target1Hit, c.Target2Hit, c.Target3Hit, c.StopLossHit,
		c.Target1HitDate, c.Target2HitDate, c.Target3HitDate, c.StopLossHitDate, c.HitDate,
		c.CurrentPrice.String(), c.LastChecked, c.Status, c.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetCall(ctx context.Context, id string) (*model.TradingCall, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+callColumns+` FROM trading_calls WHERE id = $1`, id)

	c, err := scanCall(row)
	if err != nil {
		return nil, fmt.Errorf("get call %s: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) ListCalls(ctx context.Context, filter ListFilter) ([]model.TradingCall, error) {
	query := `SELECT ` + callColumns + ` FROM trading_calls WHERE 1=1`
	var args []interface{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Symbol != "" {
		args = append(args, filter.Symbol)
		query += fmt.Sprintf(" AND symbol = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCalls(rows)
}

func (s *PostgresStore) ListOpenCalls(ctx context.Context) ([]model.TradingCall, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+callColumns+`
		 FROM trading_calls
		 WHERE status IN ('ACTIVE', 'TARGET1_HIT', 'TARGET2_HIT')
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCalls(rows)
}

func (s *PostgresStore) ListInconsistentCalls(ctx context.Context) ([]model.TradingCall, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+callColumns+`
		 FROM trading_calls
		 WHERE stop_loss_hit AND (target1_hit OR target2_hit OR target3_hit)
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCalls(rows)
}

func (s *PostgresStore) ListExpiryCandidates(ctx context.Context, cutoff time.Time) ([]model.TradingCall, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+callColumns+`
		 FROM trading_calls
		 WHERE trade_type = 'SWING' AND status = 'ACTIVE' AND call_date < $1
		   AND NOT (target1_hit OR target2_hit OR target3_hit OR stop_loss_hit)
		 ORDER BY created_at DESC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCalls(rows)
}

func (s *PostgresStore) UpdateCallState(ctx context.Context, c *model.TradingCall) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trading_calls
		 SET target1_hit = $2, target2_hit = $3, target3_hit = $4, stop_loss_hit = $5,
		     target1_hit_date = $6, target2_hit_date = $7, target3_hit_date = $8,
		     stop_loss_hit_date = $9, hit_date = $10,
		     current_price = $11::NUMERIC, last_checked = $12, status = $13
		 WHERE id = $1`,
		c.ID,
		c.Target1Hit, c.Target2Hit, c.Target3Hit, c.StopLossHit,
		c.Target1HitDate, c.Target2HitDate, c.Target3HitDate,
		c.StopLossHitDate, c.HitDate,
		c.CurrentPrice.String(), c.LastChecked, c.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, c.ID)
	}
	return nil
}

func (s *PostgresStore) PublishCall(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trading_calls SET status = 'ACTIVE'
		 WHERE id = $1 AND status = 'SCHEDULED'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("call %s not found or not scheduled", id)
	}
	return nil
}

// pgxRow covers both QueryRow results and iterating rows.
type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanCall(row pgxRow) (*model.TradingCall, error) {
	var c model.TradingCall
	var entry, t1, t2, t3, sl, current string

	err := row.Scan(&c.ID, &c.Symbol, &c.TradeType, &c.CallDate,
		&entry, &t1, &t2, &t3, &sl,
		&c.Target1Hit, &c.Target2Hit, &c.Target3Hit, &c.StopLossHit,
		&c.Target1HitDate, &c.Target2HitDate, &c.Target3HitDate, &c.StopLossHitDate, &c.HitDate,
		&current, &c.LastChecked, &c.Status, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	c.EntryPrice, _ = decimal.NewFromString(entry)
	c.Target1, _ = decimal.NewFromString(t1)
	c.Target2, _ = decimal.NewFromString(t2)
	c.Target3, _ = decimal.NewFromString(t3)
	c.StopLoss, _ = decimal.NewFromString(sl)
	c.CurrentPrice, _ = decimal.NewFromString(current)

	return &c, nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanCalls(rows pgxRows) ([]model.TradingCall, error) {
	var calls []model.TradingCall
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, *c)
	}
	return calls, rows.Err()
}
