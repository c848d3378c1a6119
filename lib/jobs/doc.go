// Package jobs implements the database the command server mediates: calculation
// (job) records and the log lines the workers report for them.
//
// Records are stored as JSON in a store.IStore. Job keys carry the zero padded id,
// so listing is a single ordered prefix scan. Every job owns a key range for its
// log records which is removed together with the job.
//
// Job lifecycle:
//
//	created -> executing -> complete
//	   |           |
//	   +-----------+------> failed | aborted
//
// Errors for unknown ids wrap ErrNotFound, invalid arguments wrap ErrInvalidStatus,
// ErrInvalidTransition or ErrInvalidLevel. All of them report an error kind so the
// server forwards them categorized.
package jobs
