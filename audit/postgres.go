package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/michaelpento.lv/arbbot/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS arb_opportunity (
    id             TEXT PRIMARY KEY,
    route          TEXT NOT NULL,
    provider_id    TEXT NOT NULL,
    source         TEXT NOT NULL,
    in_amount      NUMERIC NOT NULL,
    out_amount     NUMERIC NOT NULL,
    loan_fee       NUMERIC NOT NULL,
    net_profit     BIGINT NOT NULL,
    net_profit_pct DOUBLE PRECISION NOT NULL,
    confidence     DOUBLE PRECISION NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    inserted_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS arb_execution (
    id             BIGSERIAL PRIMARY KEY,
    opportunity_id TEXT NOT NULL,
    bundle_id      TEXT NOT NULL,
    provider_id    TEXT NOT NULL,
    route          TEXT NOT NULL,
    state          TEXT NOT NULL,
    reason         TEXT NOT NULL,
    slot           BIGINT NOT NULL,
    attempts       INTEGER NOT NULL,
    tip_lamports   BIGINT NOT NULL,
    net_profit     BIGINT NOT NULL,
    started_at     TIMESTAMPTZ NOT NULL,
    duration_ms    BIGINT NOT NULL,
    inserted_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`

type dbOpportunity struct {
	ID           string    `db:"id"`
	Route        string    `db:"route"`
	ProviderID   string    `db:"provider_id"`
	Source       string    `db:"source"`
	InAmount     string    `db:"in_amount"`
	OutAmount    string    `db:"out_amount"`
	LoanFee      string    `db:"loan_fee"`
	NetProfit    int64     `db:"net_profit"`
	NetProfitPct float64   `db:"net_profit_pct"`
	Confidence   float64   `db:"confidence"`
	CreatedAt    time.Time `db:"created_at"`
}

var insertOpportunityQuery = `
INSERT INTO arb_opportunity (id, route, provider_id, source, in_amount, out_amount, loan_fee,
                             net_profit, net_profit_pct, confidence, created_at)
VALUES (:id, :route, :provider_id, :source, :in_amount, :out_amount, :loan_fee,
        :net_profit, :net_profit_pct, :confidence, :created_at)
ON CONFLICT (id) DO NOTHING`

var insertExecutionQuery = `
INSERT INTO arb_execution (opportunity_id, bundle_id, provider_id, route, state, reason, slot,
                           attempts, tip_lamports, net_profit, started_at, duration_ms)
VALUES (:opportunity_id, :bundle_id, :provider_id, :route, :state, :reason, :slot,
        :attempts, :tip_lamports, :net_profit, :started_at, :duration_ms)`

// PostgresSink stores audit records in Postgres
type PostgresSink struct {
	db *sqlx.DB

	insertOpportunity *sqlx.NamedStmt
	insertExecution   *sqlx.NamedStmt
}

// NewPostgresSink connects, creates the tables if needed and prepares the
// insert statements
func NewPostgresSink(postgresDSN string) (*PostgresSink, error) {
	db, err := sqlx.Connect("postgres", postgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create audit tables: %w", err)
	}

	insertOpportunity, err := db.PrepareNamed(insertOpportunityQuery)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	insertExecution, err := db.PrepareNamed(insertExecutionQuery)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &PostgresSink{
		db:                db,
		insertOpportunity: insertOpportunity,
		insertExecution:   insertExecution,
	}, nil
}

func (s *PostgresSink) RecordOpportunity(ctx context.Context, opp *types.Opportunity) error {
	row := dbOpportunity{
		ID:           opp.ID,
		Route:        opp.RouteKey(),
		ProviderID:   opp.ProviderID,
		Source:       string(opp.Quote.Source),
		InAmount:     strconv.FormatUint(opp.Quote.InAmount, 10),
		OutAmount:    strconv.FormatUint(opp.Quote.OutAmount, 10),
		LoanFee:      strconv.FormatUint(opp.LoanFee, 10),
		NetProfit:    opp.NetProfit,
		NetProfitPct: opp.NetProfitPercent,
		Confidence:   opp.Confidence,
		CreatedAt:    opp.CreatedAt.UTC(),
	}
	if _, err := s.insertOpportunity.ExecContext(ctx, row); err != nil {
		return fmt.Errorf("failed to insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

func (s *PostgresSink) RecordExecution(ctx context.Context, exec Execution) error {
	if _, err := s.insertExecution.ExecContext(ctx, exec); err != nil {
		return fmt.Errorf("failed to insert execution of %s: %w", exec.OpportunityID, err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}
