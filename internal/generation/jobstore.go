package generation

import (
	"sync"
	"time"
)

// JobStore holds batch jobs for status polling. The default store is
// in-memory; a shared deployment would back this with Redis.
type JobStore interface {
	Put(job *Job)
	Get(jobID string) (*Job, bool)
	EvictFinishedBefore(cutoff time.Time) int
}

// MemoryJobStore is the process-local JobStore.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*Job)}
}

func (s *MemoryJobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *MemoryJobStore) Get(jobID string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	return job, ok
}

// EvictFinishedBefore drops jobs whose run completed before cutoff and
// returns how many were removed. In-flight jobs are never evicted.
func (s *MemoryJobStore) EvictFinishedBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if job.finishedBefore(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}
