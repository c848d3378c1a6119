package server

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/dbsrv/lib/store"
	"github.com/ValentinKolb/dbsrv/rpc/common"
	"github.com/ValentinKolb/dbsrv/rpc/serializer"
	"github.com/ValentinKolb/dbsrv/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new command server.
// If functions is nil the builtin functions are used. If no adapters are given the
// server opens the store of the configuration and serves the default adapters
// (jobs, locks, calculation data) on top of it.
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//		nil,
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	functions *FuncRegistry,
	adapters ...IRPCServerAdapter,
) IRPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.Store.Type == "" {
		config.Store.Type = common.StoreTypeMemory
	}

	return &rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		functions:  functions,
		adapters:   adapters,
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	functions  *FuncRegistry
	adapters   []IRPCServerAdapter

	// set by init
	table   *Table
	backend store.IStore
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IRPCServer)
// --------------------------------------------------------------------------

func (s *rpcServer) Serve(ctx context.Context) error {
	if err := s.init(); err != nil {
		return err
	}
	defer s.close()

	if s.config.MetricsEndpoint != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go serveMetrics(metricsCtx, s.config.MetricsEndpoint)
	}

	if err := s.transport.Listen(ctx, s.config); err != nil {
		return fmt.Errorf("failed to serve on %s: %w", s.config.Endpoint, err)
	}
	Logger.Infof("Server stopped")
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// init sets up the loggers, the backend and the dispatch table and registers the handler
func (s *rpcServer) init() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}
	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	if s.functions == nil {
		s.functions = DefaultFunctions()
	}

	adapters := s.adapters
	if len(adapters) == 0 {
		backend, err := NewBackend(s.config.Store)
		if err != nil {
			return err
		}
		s.backend = backend
		adapters = DefaultAdapters(backend)
		Logger.Infof("Opened %s store", s.config.Store.Type)
	}

	table, err := NewTable(s.functions, adapters...)
	if err != nil {
		s.close()
		return fmt.Errorf("failed to build dispatch table: %w", err)
	}
	s.table = table
	Logger.Debugf("Registered commands: %v", table.Names())

	s.transport.RegisterHandler(s.handle)
	return nil
}

// close releases the backend opened by init
func (s *rpcServer) close() {
	if s.backend == nil {
		return
	}
	if err := s.backend.Close(); err != nil {
		Logger.Errorf("Failed to close store: %v", err)
	}
	s.backend = nil
}

// handle processes one encoded command and returns the encoded reply
func (s *rpcServer) handle(ctx context.Context, req []byte) ([]byte, bool) {
	start := time.Now()
	reply, stop := s.dispatch(ctx, req)
	recordCommand(reply.ErrKind, start)

	resp, err := s.serializer.Serialize(*reply)
	if err != nil {
		Logger.Errorf("Failed to encode reply: %v", err)
		resp, err = s.serializer.Serialize(*common.NewErrorReply(common.ErrKindRuntime, "failed to encode reply: %v", err))
		if err != nil {
			// only reachable with a broken serializer, the client sees a closed connection
			Logger.Errorf("Failed to encode error reply: %v", err)
		}
	}
	return resp, stop
}

// dispatch decodes, resolves and executes a command
func (s *rpcServer) dispatch(ctx context.Context, req []byte) (*common.Message, bool) {
	var msg common.Message
	if err := s.serializer.Deserialize(req, &msg); err != nil {
		return s.fail("<undecodable>", common.NewCommandError(common.ErrKindProtocol, "failed to decode command: %v", err)), false
	}
	if err := msg.Validate(); err != nil {
		return s.fail(msg.String(), common.NewCommandError(common.ErrKindProtocol, "%v", err)), false
	}

	if msg.IsStop() {
		Logger.Infof("Received %s, shutting down", common.StopCommand)
		return common.NewReply(nil, ""), true
	}

	entry, err := s.table.Resolve(msg.Name)
	if err != nil {
		return s.fail(msg.String(), err), false
	}
	call, err := s.table.Bind(entry, &msg)
	if err != nil {
		return s.fail(msg.String(), err), false
	}

	Logger.Debugf("Executing %s %s", entry.Kind, call)
	result, errKind, _ := SafeCall(ctx, entry, call, s.config.CallTimeout())
	return common.NewReply(result, errKind), false
}

// fail logs a failure that happened before the command was executed and creates the reply
func (s *rpcServer) fail(call string, err error) *common.Message {
	kind := common.KindOf(err)
	Logger.Errorf("%s failed with %s: %v", call, kind, err)
	return common.NewErrorReply(kind, "%s: %v", call, err)
}
