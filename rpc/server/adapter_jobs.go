package server

import (
	"context"

	"github.com/ValentinKolb/dbsrv/lib/jobs"
)

// NewJobDBServerAdapter creates an adapter exposing the job database.
// The calculation id of a method command is the job id.
func NewJobDBServerAdapter(db jobs.IJobDB) IRPCServerAdapter {
	return &jobDBServerAdapter{db: db}
}

type jobDBServerAdapter struct {
	db jobs.IJobDB
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IRPCServerAdapter)
// --------------------------------------------------------------------------

func (a *jobDBServerAdapter) Name() string { return "jobs" }

func (a *jobDBServerAdapter) Methods() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"create_job": a.create,
		"get_job":    a.get,
		"list_jobs":  a.list,
		"set_status": a.setStatus,
		"log":        a.log,
		"get_logs":   a.logs,
		"delete_job": a.delete,
	}
}

// --------------------------------------------------------------------------
// Methods
// --------------------------------------------------------------------------

// create: description user. The calculation id is ignored, the new id is returned with the job.
func (a *jobDBServerAdapter) create(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 2, 2); err != nil {
		return nil, err
	}
	desc, err := stringArg(call, 0)
	if err != nil {
		return nil, err
	}
	user, err := stringArg(call, 1)
	if err != nil {
		return nil, err
	}
	job, err := a.db.Create(desc, user)
	if err != nil {
		return nil, err
	}
	return job.Map(), nil
}

func (a *jobDBServerAdapter) get(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 0, 0); err != nil {
		return nil, err
	}
	job, err := a.db.Get(call.CalcID)
	if err != nil {
		return nil, err
	}
	return job.Map(), nil
}

// list ignores the calculation id
func (a *jobDBServerAdapter) list(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 0, 0); err != nil {
		return nil, err
	}
	all, err := a.db.List()
	if err != nil {
		return nil, err
	}
	result := make([]any, len(all))
	for i, job := range all {
		result[i] = job.Map()
	}
	return result, nil
}

func (a *jobDBServerAdapter) setStatus(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 1, 1); err != nil {
		return nil, err
	}
	s, err := stringArg(call, 0)
	if err != nil {
		return nil, err
	}
	status, err := jobs.ParseStatus(s)
	if err != nil {
		return nil, err
	}
	job, err := a.db.SetStatus(call.CalcID, status)
	if err != nil {
		return nil, err
	}
	return job.Map(), nil
}

// log: level message
func (a *jobDBServerAdapter) log(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 2, 2); err != nil {
		return nil, err
	}
	level, err := stringArg(call, 0)
	if err != nil {
		return nil, err
	}
	msg, err := stringArg(call, 1)
	if err != nil {
		return nil, err
	}
	return nil, a.db.AppendLog(call.CalcID, level, msg)
}

func (a *jobDBServerAdapter) logs(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 0, 0); err != nil {
		return nil, err
	}
	records, err := a.db.Logs(call.CalcID)
	if err != nil {
		return nil, err
	}
	result := make([]any, len(records))
	for i, r := range records {
		result[i] = r.Map()
	}
	return result, nil
}

func (a *jobDBServerAdapter) delete(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 0, 0); err != nil {
		return nil, err
	}
	return nil, a.db.Delete(call.CalcID)
}
