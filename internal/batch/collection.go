package batch

import (
	"fmt"
	"sync"
	"time"

	"veostudio/internal/domain"
)

// Change is delivered to collection subscribers after every mutation. Jobs
// holds copies of the entries that changed.
type Change struct {
	Jobs []domain.Job
}

// Collection is the shared, ordered set of session jobs. Entries are keyed
// by id and every mutation touches exactly the entries it names, so lifecycle
// goroutines settling in any order cannot overwrite each other.
type Collection struct {
	now func() time.Time

	mu    sync.RWMutex
	jobs  map[string]domain.Job
	order []string

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

func NewCollection() *Collection {
	return &Collection{
		now:  func() time.Time { return time.Now().UTC() },
		jobs: make(map[string]domain.Job),
		subs: make(map[int]func(Change)),
	}
}

// InsertBatch adds a whole batch in one update, ahead of every earlier job.
// The batch keeps its own order. Jobs must be new, pending and at 0%.
func (c *Collection) InsertBatch(batch []domain.Job) error {
	if len(batch) == 0 {
		return nil
	}

	c.mu.Lock()
	seen := make(map[string]struct{}, len(batch))
	for _, job := range batch {
		if job.ID == "" {
			c.mu.Unlock()
			return fmt.Errorf("insert batch: job id is required")
		}
		if _, dup := seen[job.ID]; dup {
			c.mu.Unlock()
			return fmt.Errorf("insert batch: duplicate job id %s", job.ID)
		}
		if _, exists := c.jobs[job.ID]; exists {
			c.mu.Unlock()
			return fmt.Errorf("insert batch: job %s already exists", job.ID)
		}
		if job.Status != domain.JobStatusPending || job.Progress != 0 {
			c.mu.Unlock()
			return fmt.Errorf("%w: new job %s must be pending at 0%%", domain.ErrInvalidTransition, job.ID)
		}
		seen[job.ID] = struct{}{}
	}

	ids := make([]string, 0, len(batch)+len(c.order))
	inserted := make([]domain.Job, 0, len(batch))
	for _, job := range batch {
		c.jobs[job.ID] = job
		ids = append(ids, job.ID)
		inserted = append(inserted, job)
	}
	c.order = append(ids, c.order...)
	c.mu.Unlock()

	c.notify(Change{Jobs: inserted})
	return nil
}

// Update applies fn to a copy of job id and stores the result if it keeps
// the job invariants: status only moves forward, progress never decreases,
// and progress is 100 exactly when the job is completed.
func (c *Collection) Update(id string, fn func(*domain.Job)) (domain.Job, error) {
	c.mu.Lock()
	current, ok := c.jobs[id]
	if !ok {
		c.mu.Unlock()
		return domain.Job{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}

	next := current
	fn(&next)
	next.ID = current.ID
	next.BatchID = current.BatchID
	next.CreatedAt = current.CreatedAt

	if !domain.CanTransition(current.Status, next.Status) {
		c.mu.Unlock()
		return current, fmt.Errorf("%w: job %s %s -> %s", domain.ErrInvalidTransition, id, current.Status, next.Status)
	}

	switch {
	case next.Status == domain.JobStatusCompleted:
		next.Progress = 100
	case next.Progress < current.Progress:
		next.Progress = current.Progress
	case next.Progress > 99:
		next.Progress = 99
	}
	next.UpdatedAt = c.now()

	c.jobs[id] = next
	c.mu.Unlock()

	c.notify(Change{Jobs: []domain.Job{next}})
	return next, nil
}

func (c *Collection) Get(id string) (domain.Job, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	job, ok := c.jobs[id]
	return job, ok
}

// List returns every job, most recent batch first.
func (c *Collection) List() []domain.Job {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Job, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.jobs[id])
	}
	return out
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Subscribe registers fn for every change. fn runs on the mutating
// goroutine after the collection lock is released.
func (c *Collection) Subscribe(fn func(Change)) (cancel func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Collection) notify(ch Change) {
	c.subMu.Lock()
	fns := make([]func(Change), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
}
