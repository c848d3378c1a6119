package jobs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dbsrv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("jobs")

// Key layout in the store. Ids are zero padded so the store's key order is the id order.
const (
	keySeq       = "jobs/seq"
	keyJobPrefix = "jobs/job/"
	keyLogPrefix = "jobs/log/"
	idWidth      = 20
)

func jobKey(id int64) string {
	return fmt.Sprintf("%s%0*d", keyJobPrefix, idWidth, id)
}

func logPrefix(id int64) string {
	return fmt.Sprintf("%s%0*d/", keyLogPrefix, idWidth, id)
}

func logKey(id, seq int64) string {
	return fmt.Sprintf("%s%0*d", logPrefix(id), idWidth, seq)
}

type jobDBImpl struct {
	store store.IStore
	mu    sync.Mutex // serializes read-modify-write sequences
	now   func() time.Time
}

// NewJobDB creates a job database on top of the given store
func NewJobDB(s store.IStore) IJobDB {
	return &jobDBImpl{
		store: s,
		now:   now,
	}
}

// now returns the current time without monotonic reading, as it is read back from the store
func now() time.Time {
	return time.Now().UTC().Round(0)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see jobs.IJobDB)
// --------------------------------------------------------------------------

func (db *jobDBImpl) Create(description, user string) (Job, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, err := db.nextID()
	if err != nil {
		return Job{}, err
	}

	now := db.now()
	job := Job{
		ID:          id,
		Description: description,
		User:        user,
		Status:      StatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.put(jobKey(id), job); err != nil {
		return Job{}, err
	}

	Logger.Infof("Created job %d (%s) for user %q", id, description, user)
	return job, nil
}

func (db *jobDBImpl) Get(id int64) (Job, error) {
	return db.load(id)
}

func (db *jobDBImpl) List() ([]Job, error) {
	jobs := []Job{}
	var decodeErr error
	err := db.store.Scan(keyJobPrefix, func(key string, value []byte) bool {
		var job Job
		if decodeErr = json.Unmarshal(value, &job); decodeErr != nil {
			decodeErr = fmt.Errorf("corrupt job record %s: %w", key, decodeErr)
			return false
		}
		jobs = append(jobs, job)
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return jobs, nil
}

func (db *jobDBImpl) SetStatus(id int64, status Status) (Job, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Job{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	job, err := db.load(id)
	if err != nil {
		return Job{}, err
	}
	if job.Status == status {
		return job, nil
	}
	if !job.Status.CanBecome(status) {
		return Job{}, fmt.Errorf("job %d: %w from %s to %s", id, ErrInvalidTransition, job.Status, status)
	}

	job.Status = status
	job.UpdatedAt = db.now()
	if err := db.put(jobKey(id), job); err != nil {
		return Job{}, err
	}

	Logger.Infof("Job %d is now %s", id, status)
	return job, nil
}

func (db *jobDBImpl) AppendLog(id int64, level, msg string) error {
	level, err := ParseLevel(level)
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.load(id); err != nil {
		return err
	}

	// next sequence number of this job
	seq := int64(1)
	err = db.store.Scan(logPrefix(id), func(key string, _ []byte) bool {
		n, parseErr := strconv.ParseInt(strings.TrimPrefix(key, logPrefix(id)), 10, 64)
		if parseErr == nil && n >= seq {
			seq = n + 1
		}
		return true
	})
	if err != nil {
		return err
	}

	return db.put(logKey(id, seq), LogRecord{
		Seq:     seq,
		Time:    db.now(),
		Level:   level,
		Message: msg,
	})
}

func (db *jobDBImpl) Logs(id int64) ([]LogRecord, error) {
	if _, err := db.load(id); err != nil {
		return nil, err
	}

	records := []LogRecord{}
	var decodeErr error
	err := db.store.Scan(logPrefix(id), func(key string, value []byte) bool {
		var r LogRecord
		if decodeErr = json.Unmarshal(value, &r); decodeErr != nil {
			decodeErr = fmt.Errorf("corrupt log record %s: %w", key, decodeErr)
			return false
		}
		records = append(records, r)
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return records, nil
}

func (db *jobDBImpl) Delete(id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.load(id); err != nil {
		return err
	}

	var keys []string
	if err := db.store.Scan(logPrefix(id), func(key string, _ []byte) bool {
		keys = append(keys, key)
		return true
	}); err != nil {
		return err
	}
	for _, key := range keys {
		if err := db.store.Delete(key); err != nil {
			return err
		}
	}
	if err := db.store.Delete(jobKey(id)); err != nil {
		return err
	}

	Logger.Infof("Deleted job %d with %d log records", id, len(keys))
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// nextID increments the persistent id counter. Must be called with db.mu held.
func (db *jobDBImpl) nextID() (int64, error) {
	var last int64
	value, ok, err := db.store.Get(keySeq)
	if err != nil {
		return 0, err
	}
	if ok {
		if last, err = strconv.ParseInt(string(value), 10, 64); err != nil {
			return 0, fmt.Errorf("corrupt job sequence %q: %w", value, err)
		}
	}

	next := last + 1
	if err := db.store.Set(keySeq, []byte(strconv.FormatInt(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}

func (db *jobDBImpl) load(id int64) (Job, error) {
	value, ok, err := db.store.Get(jobKey(id))
	if err != nil {
		return Job{}, err
	}
	if !ok {
		return Job{}, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}

	var job Job
	if err := json.Unmarshal(value, &job); err != nil {
		return Job{}, fmt.Errorf("corrupt job record %d: %w", id, err)
	}
	return job, nil
}

func (db *jobDBImpl) put(key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return db.store.Set(key, data)
}
