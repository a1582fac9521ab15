package batch

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"veostudio/internal/domain"
)

func pendingJobs(prefix string, n int) []domain.Job {
	jobs := make([]domain.Job, n)
	for i := range jobs {
		jobs[i] = domain.Job{ID: fmt.Sprintf("%s-%d", prefix, i), Status: domain.JobStatusPending}
	}
	return jobs
}

func TestInsertBatchPrependsInOneChange(t *testing.T) {
	c := NewCollection()
	if err := c.InsertBatch(pendingJobs("a", 2)); err != nil {
		t.Fatalf("InsertBatch error: %v", err)
	}

	var changes []Change
	cancel := c.Subscribe(func(ch Change) { changes = append(changes, ch) })
	defer cancel()

	if err := c.InsertBatch(pendingJobs("b", 3)); err != nil {
		t.Fatalf("InsertBatch error: %v", err)
	}
	if len(changes) != 1 || len(changes[0].Jobs) != 3 {
		t.Fatalf("expected one change with 3 jobs, got %#v", changes)
	}

	var ids []string
	for _, job := range c.List() {
		ids = append(ids, job.ID)
	}
	want := []string{"b-0", "b-1", "b-2", "a-0", "a-1"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Fatalf("order = %v, want %v", ids, want)
	}
}

func TestInsertBatchRejectsInvalidJobs(t *testing.T) {
	c := NewCollection()
	_ = c.InsertBatch(pendingJobs("a", 1))

	tests := []struct {
		name  string
		batch []domain.Job
	}{
		{"existing id", pendingJobs("a", 1)},
		{"duplicate id", []domain.Job{{ID: "x", Status: domain.JobStatusPending}, {ID: "x", Status: domain.JobStatusPending}}},
		{"not pending", []domain.Job{{ID: "y", Status: domain.JobStatusGenerating}}},
		{"non-zero progress", []domain.Job{{ID: "z", Status: domain.JobStatusPending, Progress: 10}}},
		{"missing id", []domain.Job{{Status: domain.JobStatusPending}}},
	}
	for _, tc := range tests {
		if err := c.InsertBatch(tc.batch); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
	if c.Len() != 1 {
		t.Fatalf("rejected batches must not mutate the collection, len=%d", c.Len())
	}
}

func TestUpdateEnforcesInvariants(t *testing.T) {
	c := NewCollection()
	_ = c.InsertBatch(pendingJobs("j", 1))

	job, err := c.Update("j-0", func(j *domain.Job) {
		j.Status = domain.JobStatusGenerating
		j.Progress = 40
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if job.Progress != 40 {
		t.Fatalf("progress = %d, want 40", job.Progress)
	}

	job, _ = c.Update("j-0", func(j *domain.Job) { j.Progress = 10 })
	if job.Progress != 40 {
		t.Fatalf("progress decreased to %d", job.Progress)
	}

	job, _ = c.Update("j-0", func(j *domain.Job) { j.Progress = 100 })
	if job.Progress == 100 {
		t.Fatal("progress must not reach 100 before completion")
	}

	_, err = c.Update("j-0", func(j *domain.Job) { j.Status = domain.JobStatusPending })
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	job, err = c.Update("j-0", func(j *domain.Job) {
		j.Status = domain.JobStatusCompleted
		j.ResultLocation = "https://example.test/v.mp4"
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if job.Progress != 100 {
		t.Fatalf("completed progress = %d, want 100", job.Progress)
	}

	for _, status := range []domain.JobStatus{domain.JobStatusGenerating, domain.JobStatusFailed, domain.JobStatusCompleted} {
		if _, err := c.Update("j-0", func(j *domain.Job) { j.Status = status }); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("terminal job moved to %s: %v", status, err)
		}
	}
}

func TestUpdateUnknownJob(t *testing.T) {
	c := NewCollection()
	if _, err := c.Update("missing", func(*domain.Job) {}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentUpdatesDoNotInterfere(t *testing.T) {
	c := NewCollection()
	jobs := pendingJobs("c", 4)
	_ = c.InsertBatch(jobs)

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = c.Update(id, func(j *domain.Job) { j.Status = domain.JobStatusGenerating })
			for attempt := 1; attempt <= 30; attempt++ {
				_, _ = c.Update(id, func(j *domain.Job) { j.Progress = EstimateProgress(attempt) })
			}
			_, _ = c.Update(id, func(j *domain.Job) { j.Status = domain.JobStatusCompleted })
		}(job.ID)
	}
	wg.Wait()

	for _, job := range c.List() {
		if job.Status != domain.JobStatusCompleted || job.Progress != 100 {
			t.Fatalf("job %s ended as %s/%d", job.ID, job.Status, job.Progress)
		}
	}
}
