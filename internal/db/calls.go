package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// callAdmissionLockKey serializes admission decisions across scheduler processes.
const callAdmissionLockKey int64 = 0x7461_6c65_6e74

const scheduledCallColumns = `id, candidate_id, job_id, phone_number, assistant_id, start_time, end_time,
	is_called, claimed_at, call_id, created_at`

func scanScheduledCall(row pgx.Row) (*ScheduledCall, error) {
	var c ScheduledCall
	err := row.Scan(&c.ID, &c.CandidateID, &c.JobID, &c.PhoneNumber, &c.AssistantID,
		&c.StartTime, &c.EndTime, &c.IsCalled, &c.ClaimedAt, &c.CallID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateScheduledCall books a call in the pending state.
func (db *DB) CreateScheduledCall(ctx context.Context, input *ScheduledCallInput) (*ScheduledCall, error) {
	c, err := scanScheduledCall(db.pool.QueryRow(ctx,
		`INSERT INTO scheduled_calls (candidate_id, job_id, phone_number, assistant_id, start_time, end_time)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+scheduledCallColumns,
		input.CandidateID, input.JobID, input.PhoneNumber, input.AssistantID, input.StartTime, input.EndTime,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduled call: %w", err)
	}
	return c, nil
}

// GetScheduledCall returns a scheduled call, or nil if not found.
func (db *DB) GetScheduledCall(ctx context.Context, id uuid.UUID) (*ScheduledCall, error) {
	c, err := scanScheduledCall(db.pool.QueryRow(ctx,
		`SELECT `+scheduledCallColumns+` FROM scheduled_calls WHERE id = $1`, id,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get scheduled call: %w", err)
	}
	return c, nil
}

// CountInFlightCalls counts claimed calls whose window has not ended.
func (db *DB) CountInFlightCalls(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM scheduled_calls WHERE is_called AND end_time > $1`, now,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count in-flight calls: %w", err)
	}
	return n, nil
}

// ClaimNextDueCall atomically claims the oldest pending call whose start
// time has passed, provided fewer than maxInFlight calls are in flight.
// It returns nil when nothing is due or the limit has been reached.
func (db *DB) ClaimNextDueCall(ctx context.Context, now time.Time, maxInFlight int) (*ScheduledCall, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, callAdmissionLockKey); err != nil {
		return nil, fmt.Errorf("failed to acquire admission lock: %w", err)
	}

	var inFlight int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM scheduled_calls WHERE is_called AND end_time > $1`, now,
	).Scan(&inFlight); err != nil {
		return nil, fmt.Errorf("failed to count in-flight calls: %w", err)
	}
	if inFlight >= maxInFlight {
		return nil, nil
	}

	var id uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM scheduled_calls
		 WHERE NOT is_called AND start_time <= $1
		 ORDER BY start_time, id
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
		now,
	).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select due call: %w", err)
	}

	c, err := scanScheduledCall(tx.QueryRow(ctx,
		`UPDATE scheduled_calls SET is_called = TRUE, claimed_at = $2
		 WHERE id = $1
		 RETURNING `+scheduledCallColumns,
		id, now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to claim call: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit call claim: %w", err)
	}
	return c, nil
}

// RecordDispatch stores the voice platform's call id and the call detail row.
func (db *DB) RecordDispatch(ctx context.Context, call *ScheduledCall, callID string) (*CallDetail, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE scheduled_calls SET call_id = $2 WHERE id = $1 AND is_called AND call_id IS NULL`,
		call.ID, callID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record call id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("scheduled call %s is not awaiting dispatch", call.ID)
	}

	d := CallDetail{
		ScheduledCallID: call.ID,
		CallID:          callID,
		CandidateID:     call.CandidateID,
		JobID:           call.JobID,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO call_details (scheduled_call_id, call_id, candidate_id, job_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, status, created_at`,
		d.ScheduledCallID, d.CallID, d.CandidateID, d.JobID,
	).Scan(&d.ID, &d.Status, &d.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("call id %s already recorded: %w", callID, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert call detail: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit dispatch: %w", err)
	}

	call.CallID = &d.CallID
	return &d, nil
}

// ListOrphanedClaims returns calls claimed before the cutoff that never got a call id.
func (db *DB) ListOrphanedClaims(ctx context.Context, claimedBefore time.Time) ([]ScheduledCall, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+scheduledCallColumns+` FROM scheduled_calls
		 WHERE is_called AND call_id IS NULL AND claimed_at < $1
		 ORDER BY claimed_at`,
		claimedBefore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphaned calls: %w", err)
	}
	defer rows.Close()

	var calls []ScheduledCall
	for rows.Next() {
		c, err := scanScheduledCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled call: %w", err)
		}
		calls = append(calls, *c)
	}
	return calls, rows.Err()
}
