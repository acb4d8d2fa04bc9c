package repository

import (
	"context"
	"fmt"
	"time"
)

// EscalationStats summarizes queries whose priority was raised after intake.
// A query counts as escalated when it carries at least one update matching
// the "priority changed ... increased" marker SetPriority records.
type EscalationStats struct {
	EscalatedCount      int64
	ResolvedCount       int64
	AvgTimeToEscalation time.Duration
}

// Escalations computes the escalation report over all queries.
func (r *Repository) Escalations(ctx context.Context) (*EscalationStats, error) {
	var (
		stats   EscalationStats
		avgSecs float64
	)
	err := r.db.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE q.resolved_at IS NOT NULL),
		       COALESCE(avg(EXTRACT(EPOCH FROM (e.first_escalation - q.created_at))), 0)
		FROM queries q
		JOIN LATERAL (
			SELECT min(u.created_at) AS first_escalation
			FROM query_updates u
			WHERE u.query_id = q.id
			  AND u.content LIKE 'priority changed%increased'
		) e ON e.first_escalation IS NOT NULL`).
		Scan(&stats.EscalatedCount, &stats.ResolvedCount, &avgSecs)
	if err != nil {
		return nil, fmt.Errorf("escalation stats: %w", err)
	}
	stats.AvgTimeToEscalation = time.Duration(avgSecs * float64(time.Second))
	return &stats, nil
}
