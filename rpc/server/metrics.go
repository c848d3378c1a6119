package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ValentinKolb/dbsrv/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

var (
	commandsTotal   = metrics.NewCounter("dbsrv_commands_total")
	commandDuration = metrics.NewHistogram("dbsrv_command_duration_seconds")
)

// knownKinds are the error kinds with their own label, everything else is counted as "other"
var knownKinds = map[string]bool{
	common.ErrKindProtocol:   true,
	common.ErrKindLookup:     true,
	common.ErrKindAttribute:  true,
	common.ErrKindArgument:   true,
	common.ErrKindArithmetic: true,
	common.ErrKindTimeout:    true,
	common.ErrKindStore:      true,
	common.ErrKindNotFound:   true,
	common.ErrKindPanic:      true,
	common.ErrKindRuntime:    true,
}

// errorLabel returns the metric label of an error kind
func errorLabel(errKind string) string {
	if knownKinds[errKind] {
		return errKind
	}
	return "other"
}

// recordCommand updates the command metrics after a command was executed
func recordCommand(errKind string, start time.Time) {
	commandsTotal.Inc()
	commandDuration.UpdateDuration(start)
	if errKind != "" {
		metrics.GetOrCreateCounter(fmt.Sprintf(`dbsrv_command_errors_total{kind=%q}`, errorLabel(errKind))).Inc()
	}
}

// serveMetrics exposes all metrics in the Prometheus text format on endpoint
// until ctx is done
func serveMetrics(ctx context.Context, endpoint string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	srv := &http.Server{
		Addr:              endpoint,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	Logger.Infof("Serving metrics on http://%s/metrics", endpoint)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Logger.Errorf("Metrics endpoint failed: %v", err)
	}
}
