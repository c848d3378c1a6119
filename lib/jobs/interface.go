package jobs

import (
	"fmt"
	"strings"
	"time"
)

// IJobDB is the database of calculations (jobs) and their log records.
// Implementations must be safe for concurrent use.
type IJobDB interface {
	// Create stores a new job with status created and returns it. Ids are assigned in increasing order.
	Create(description, user string) (Job, error)
	// Get returns the job with the given id or an error wrapping ErrNotFound.
	Get(id int64) (Job, error)
	// List returns all jobs ordered by id.
	List() ([]Job, error)
	// SetStatus changes the status of a job. Only the transitions allowed by Status.CanBecome are accepted.
	SetStatus(id int64, status Status) (Job, error)
	// AppendLog adds a log record to a job.
	AppendLog(id int64, level, msg string) error
	// Logs returns the log records of a job in the order they were appended.
	Logs(id int64) ([]LogRecord, error)
	// Delete removes a job and all its log records.
	Delete(id int64) error
}

// --------------------------------------------------------------------------
// Records
// --------------------------------------------------------------------------

// Job is the record of one calculation
type Job struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	User        string    `json:"user"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Map returns the job as a generic map, as sent to remote callers
func (j Job) Map() map[string]any {
	return map[string]any{
		"id":          j.ID,
		"description": j.Description,
		"user":        j.User,
		"status":      string(j.Status),
		"created_at":  j.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":  j.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// LogRecord is a single log line of a job
type LogRecord struct {
	Seq     int64     `json:"seq"`
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Map returns the record as a generic map, as sent to remote callers
func (r LogRecord) Map() map[string]any {
	return map[string]any{
		"seq":     r.Seq,
		"time":    r.Time.UTC().Format(time.RFC3339Nano),
		"level":   r.Level,
		"message": r.Message,
	}
}

// --------------------------------------------------------------------------
// Status
// --------------------------------------------------------------------------

type Status string

const (
	StatusCreated   Status = "created"
	StatusExecuting Status = "executing"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// transitions lists the statuses a job may move to from each status
var transitions = map[Status][]Status{
	StatusCreated:   {StatusExecuting, StatusFailed, StatusAborted},
	StatusExecuting: {StatusComplete, StatusFailed, StatusAborted},
}

// ParseStatus converts a string into a Status
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(s)); st {
	case StatusCreated, StatusExecuting, StatusComplete, StatusFailed, StatusAborted:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Terminal reports whether no further transitions are possible
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanBecome reports whether a job with status s may change to next
func (s Status) CanBecome(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// Log Levels
// --------------------------------------------------------------------------

var logLevels = map[string]bool{
	"debug":    true,
	"info":     true,
	"progress": true,
	"warning":  true,
	"error":    true,
	"critical": true,
}

// ParseLevel normalizes a log level name
func ParseLevel(level string) (string, error) {
	l := strings.ToLower(level)
	if l == "warn" {
		l = "warning"
	}
	if !logLevels[l] {
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}
	return l, nil
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// kindError is an error that reports the category it is sent to clients with
type kindError struct {
	kind string
	msg  string
}

func (e *kindError) Error() string     { return e.msg }
func (e *kindError) ErrorKind() string { return e.kind }

var (
	// ErrNotFound is returned for operations on unknown job ids
	ErrNotFound error = &kindError{kind: "NotFoundError", msg: "job not found"}
	// ErrInvalidStatus is returned for unknown statuses
	ErrInvalidStatus error = &kindError{kind: "ArgumentError", msg: "invalid job status"}
	// ErrInvalidTransition is returned if the status change is not allowed
	ErrInvalidTransition error = &kindError{kind: "ArgumentError", msg: "invalid status transition"}
	// ErrInvalidLevel is returned for unknown log levels
	ErrInvalidLevel error = &kindError{kind: "ArgumentError", msg: "invalid log level"}
)
