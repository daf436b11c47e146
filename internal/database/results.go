package database

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"crashcasino/internal/game"
)

const (
	resultsTable    = "game_results"
	colParticipant  = "participant_id"
	colGameType     = "game_type"
	colRoundID      = "round_id"
	colBetID        = "bet_id"
	colStake        = "stake"
	colMultiplier   = "multiplier"
	colPayout       = "payout"
	colOutcome      = "outcome"
	colCreatedAt    = "created_at"
	defaultPageSize = 50
)

// ResultStore is the Postgres game result log.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// RecordResult inserts one settled bet. The insert is keyed on bet_id, so a
// retried write of the same bet is a no-op.
func (r *ResultStore) RecordResult(ctx context.Context, res game.GameResult) error {
	query := sq.Insert(resultsTable).
		Columns(colParticipant, colGameType, colRoundID, colBetID, colStake, colMultiplier, colPayout, colOutcome, colCreatedAt).
		Values(res.ParticipantID, res.GameType, res.RoundID, res.BetID, res.Stake, res.Multiplier, res.Payout, string(res.Outcome), res.Timestamp).
		Suffix("ON CONFLICT (" + colBetID + ") DO NOTHING").
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert result %s: %w", res.BetID, err)
	}
	return nil
}

// RecentResults returns up to limit results, newest first. An empty userID
// lists every participant.
func (r *ResultStore) RecentResults(ctx context.Context, userID string, limit int) ([]game.GameResult, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	query := sq.Select(colParticipant, colGameType, colRoundID, colBetID, colStake, colMultiplier, colPayout, colOutcome, colCreatedAt).
		From(resultsTable).
		OrderBy(colCreatedAt+" DESC", "id DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar)
	if userID != "" {
		query = query.Where(sq.Eq{colParticipant: userID})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []game.GameResult
	for rows.Next() {
		var (
			res     game.GameResult
			outcome string
		)
		if err := rows.Scan(&res.ParticipantID, &res.GameType, &res.RoundID, &res.BetID,
			&res.Stake, &res.Multiplier, &res.Payout, &outcome, &res.Timestamp); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		res.Outcome = game.Outcome(outcome)
		out = append(out, res)
	}
	return out, rows.Err()
}
