package review

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mergelens/mergelens/pkg/models"
)

// TaskStatus is the lifecycle state of a review task
type TaskStatus string

const (
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusError     TaskStatus = "error"
)

// Task is the server-side handle for an in-progress review, polled by the
// client until completion.
type Task struct {
	ID        string
	Status    TaskStatus
	Result    *models.ReviewResult
	Err       string
	CreatedAt time.Time
}

// TaskRegistry tracks review tasks in memory. Tasks transition
// running -> completed or running -> error exactly once and are swept
// after maxAge.
type TaskRegistry struct {
	mu     sync.RWMutex
	tasks  map[string]*Task
	maxAge time.Duration
}

// NewTaskRegistry creates a registry that keeps tasks for maxAge
func NewTaskRegistry(maxAge time.Duration) *TaskRegistry {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &TaskRegistry{
		tasks:  make(map[string]*Task),
		maxAge: maxAge,
	}
}

// Create registers a new running task and returns its id
func (r *TaskRegistry) Create() string {
	id := uuid.NewString()

	r.mu.Lock()
	r.sweepLocked()
	r.tasks[id] = &Task{
		ID:        id,
		Status:    StatusRunning,
		CreatedAt: time.Now(),
	}
	r.mu.Unlock()

	return id
}

// Get returns a snapshot of a task
func (r *TaskRegistry) Get(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Complete marks a task as finished with its result
func (r *TaskRegistry) Complete(id string, result *models.ReviewResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task, ok := r.tasks[id]; ok && task.Status == StatusRunning {
		task.Status = StatusCompleted
		task.Result = result
	}
}

// Fail marks a task as failed
func (r *TaskRegistry) Fail(id string, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task, ok := r.tasks[id]; ok && task.Status == StatusRunning {
		task.Status = StatusError
		task.Err = errMsg
	}
}

// sweepLocked drops tasks older than maxAge. Callers hold the write lock.
func (r *TaskRegistry) sweepLocked() {
	cutoff := time.Now().Add(-r.maxAge)
	for id, task := range r.tasks {
		if task.CreatedAt.Before(cutoff) {
			delete(r.tasks, id)
		}
	}
}
