package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
)

const claimQuery = `
	SELECT seq, id, policy_id, action, description, details,
	       performed_by_type, performed_by_id, ip_address, user_agent, created_at
	FROM policy_activities
	WHERE published_at IS NULL
	ORDER BY seq
	LIMIT $1
	FOR UPDATE SKIP LOCKED
`

const markQuery = `UPDATE policy_activities SET published_at = $1 WHERE seq = ANY($2)`

// PostgresSource claims outbox rows with FOR UPDATE SKIP LOCKED so several
// relay instances can run without producing the same row twice.
type PostgresSource struct {
	pool *pgxpool.Pool
}

func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

func (s *PostgresSource) ClaimBatch(ctx context.Context, limit int, publish func(ctx context.Context, batch []Record) error) (int, error) {
	var claimed int
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch, err := claim(ctx, tx, limit)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := publish(ctx, batch); err != nil {
			return fmt.Errorf("publish activities: %w", err)
		}
		seqs := make([]int64, len(batch))
		for i, rec := range batch {
			seqs[i] = rec.Seq
		}
		if _, err := tx.Exec(ctx, markQuery, time.Now().UTC(), seqs); err != nil {
			return fmt.Errorf("mark activities published: %w", err)
		}
		claimed = len(batch)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return claimed, nil
}

func claim(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, claimQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("claim activities: %w", err)
	}
	defer rows.Close()

	var batch []Record
	for rows.Next() {
		var (
			rec              Record
			activityID, pid  uuid.UUID
			action, perfType string
			details          []byte
			a                models.Activity
		)
		if err := rows.Scan(&rec.Seq, &activityID, &pid, &action, &a.Description, &details,
			&perfType, &a.PerformedByID, &a.IPAddress, &a.UserAgent, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.ID = id.ActivityID(activityID)
		a.PolicyID = id.PolicyID(pid)
		a.Action = models.Action(action)
		a.PerformedByType = models.PerformerType(perfType)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &a.Details); err != nil {
				return nil, fmt.Errorf("decode activity details: %w", err)
			}
		}
		rec.Activity = &a
		batch = append(batch, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return batch, nil
}
