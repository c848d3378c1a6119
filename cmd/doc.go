// Package cmd implements the command-line interface of dbsrv. It provides
// the server and the client commands to interact with it.
//
// The package is organized into several subpackages:
//
//   - serve: starting and configuring the server
//   - call: sending arbitrary commands and the stop command
//   - jobs: operations on the job database (create, get, list, status, log, ...)
//   - lock: locking operations of a calculation (acquire, release)
//   - kv: the key-value area of a calculation and a performance test
//   - util: shared utilities for command-line processing and configuration (internal use)
//
// See dbsrv -help for a list of all commands.
package cmd
