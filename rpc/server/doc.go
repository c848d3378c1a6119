// Package server implements the command server of dbsrv. It receives commands from
// authenticated clients, dispatches them to registered functions or to methods of the
// server state and sends back one reply per command.
//
// Key Components:
//
//   - FuncRegistry: the process-wide function commands (ping, echo, sum, div, ...).
//     DefaultFunctions returns the builtin set.
//
//   - IRPCServerAdapter: contributes methods bound to server state. The default
//     adapters expose the job database (NewJobDBServerAdapter), the lock manager
//     (NewLockManagerServerAdapter) and a key-value area per calculation
//     (NewIStoreServerAdapter). All methods of one adapter share a mutex.
//
//   - Table: the dispatch table built from the registry and the adapters. Names starting
//     with '.' are methods, their last argument is the calculation id.
//
//   - SafeCall: executes a command, converting errors, panics and exceeded deadlines
//     into a reply with an error kind.
//
//   - NewRPCServer: creates the server for a transport and a serializer.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Endpoint:      "127.0.0.1:1907",
//	  AuthKey:       "changeme",
//	  TimeoutSecond: 30,
//	  Workers:       1,
//	  Store:         common.StoreConfig{Type: common.StoreTypeBadger, DataDir: "./data"},
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	  nil, // builtin functions
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := s.Serve(ctx); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// The command `@stop` is answered with an empty reply, afterwards the server stops
// accepting connections and Serve returns.
//
// Concurrency:
//
//	With one worker (the default) commands are executed strictly one after another in
//	the order they were accepted. With more workers commands run concurrently, methods
//	of the same adapter are still serialized.
package server
