package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dbsrv/lib/jobs"
	"github.com/ValentinKolb/dbsrv/rpc/common"
	"github.com/ValentinKolb/dbsrv/rpc/serializer"
	"github.com/ValentinKolb/dbsrv/rpc/transport"
)

// NewRPCJobDB creates a jobs.IJobDB that forwards all operations to the server
func NewRPCJobDB(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (jobs.IJobDB, error) {
	c, err := NewRPCClient(config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &rpcJobDB{client: c}, nil
}

type rpcJobDB struct {
	client IRPCClient
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the jobs package in interface.go)
// --------------------------------------------------------------------------

func (r *rpcJobDB) Create(description, user string) (jobs.Job, error) {
	// the calculation id does not exist yet
	return r.job(r.call("create_job", 0, description, user))
}

func (r *rpcJobDB) Get(id int64) (jobs.Job, error) {
	return r.job(r.call("get_job", id))
}

func (r *rpcJobDB) List() ([]jobs.Job, error) {
	res, err := r.call("list_jobs", 0)
	if err != nil {
		return nil, err
	}
	list, ok := res.([]any)
	if !ok {
		return nil, unexpected("list_jobs", res)
	}
	result := make([]jobs.Job, 0, len(list))
	for _, item := range list {
		job, err := jobFromValue(item)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, nil
}

func (r *rpcJobDB) SetStatus(id int64, status jobs.Status) (jobs.Job, error) {
	return r.job(r.call("set_status", id, string(status)))
}

func (r *rpcJobDB) AppendLog(id int64, level, msg string) error {
	_, err := r.call("log", id, level, msg)
	return err
}

func (r *rpcJobDB) Logs(id int64) ([]jobs.LogRecord, error) {
	res, err := r.call("get_logs", id)
	if err != nil {
		return nil, err
	}
	list, ok := res.([]any)
	if !ok {
		return nil, unexpected("get_logs", res)
	}
	result := make([]jobs.LogRecord, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, unexpected("get_logs", item)
		}
		t, err := timeField(m, "time")
		if err != nil {
			return nil, err
		}
		seq, _ := m["seq"].(int64)
		level, _ := m["level"].(string)
		msg, _ := m["message"].(string)
		result = append(result, jobs.LogRecord{Seq: seq, Time: t, Level: level, Message: msg})
	}
	return result, nil
}

func (r *rpcJobDB) Delete(id int64) error {
	_, err := r.call("delete_job", id)
	return err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// call invokes a method and maps remote failures back to the errors of the jobs package
func (r *rpcJobDB) call(method string, id int64, args ...any) (any, error) {
	res, err := r.client.CallMethod(context.Background(), method, id, args...)
	if err != nil && errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", jobs.ErrNotFound, err)
	}
	return res, err
}

func (r *rpcJobDB) job(res any, err error) (jobs.Job, error) {
	if err != nil {
		return jobs.Job{}, err
	}
	return jobFromValue(res)
}

// jobFromValue converts the map sent by the server (see jobs.Job.Map) into a job
func jobFromValue(v any) (jobs.Job, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return jobs.Job{}, unexpected("job", v)
	}

	var job jobs.Job
	job.ID, _ = m["id"].(int64)
	job.Description, _ = m["description"].(string)
	job.User, _ = m["user"].(string)
	status, _ := m["status"].(string)
	job.Status = jobs.Status(status)

	var err error
	if job.CreatedAt, err = timeField(m, "created_at"); err != nil {
		return jobs.Job{}, err
	}
	if job.UpdatedAt, err = timeField(m, "updated_at"); err != nil {
		return jobs.Job{}, err
	}
	return job, nil
}

func timeField(m map[string]any, name string) (time.Time, error) {
	s, _ := m[name].(string)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s in reply: %w", name, err)
	}
	return t, nil
}

func unexpected(what string, v any) error {
	return fmt.Errorf("unexpected reply for %s: %s", what, common.FormatValue(v))
}
