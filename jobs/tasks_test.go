package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
)

type stubPruner struct {
	cutoff   time.Time
	pruned   int64
	pruneErr error
}

func (p *stubPruner) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return p.pruned, p.pruneErr
}

func TestAuditRetentionComputesCutoff(t *testing.T) {
	pruner := &stubPruner{pruned: 3}
	job := NewAuditRetentionJob(pruner, nil)
	now := time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewAuditRetentionTask(AuditRetentionPayload{RetentionHours: 48})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	want := now.Add(-48 * time.Hour)
	if !pruner.cutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", pruner.cutoff, want)
	}
}

func TestAuditRetentionDefaultsHorizon(t *testing.T) {
	pruner := &stubPruner{}
	job := NewAuditRetentionJob(pruner, nil)
	now := time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewAuditRetentionTask(AuditRetentionPayload{})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	want := now.Add(-90 * 24 * time.Hour)
	if !pruner.cutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", pruner.cutoff, want)
	}
}

func TestAuditRetentionBadPayloadSkipsRetry(t *testing.T) {
	job := NewAuditRetentionJob(&stubPruner{}, nil)
	task := asynq.NewTask(TaskAuditRetention, []byte("{not json"))

	if err := job.Handle(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestAuditRetentionForwardsPruneError(t *testing.T) {
	pruneErr := errors.New("connection refused")
	job := NewAuditRetentionJob(&stubPruner{pruneErr: pruneErr}, nil)

	task, err := NewAuditRetentionTask(AuditRetentionPayload{RetentionHours: 1})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := job.Handle(context.Background(), task); !errors.Is(err, pruneErr) {
		t.Fatalf("expected prune error, got %v", err)
	}
}
