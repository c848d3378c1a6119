// Package client implements the client stub of dbsrv. Commands are sent to the server
// over an authenticated connection (one per call) and the reply is returned as result,
// or as *common.CommandError if the server reported a failure.
//
// Key Components:
//
//   - NewRPCClient: the generic stub with Call (function commands), CallMethod
//     (method commands with a calculation id) and Stop.
//
//   - NewRPCJobDB: implements jobs.IJobDB on top of the job methods of the server.
//
//   - NewRPCLockMgr: implements lockmgr.ILockManager for the locks of one calculation.
//
//   - NewRPCCalcData: access to the key-value area of one calculation.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoint:      "localhost:1907",
//	  AuthKey:       "changeme",
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	}
//
//	c, _ := client.NewRPCClient(config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//
//	res, err := c.Call(ctx, "div", 1, 0)
//	if errors.Is(err, common.ErrArithmetic) {
//	  // the server reported a division by zero
//	}
//
//	job, _ := c.CallMethod(ctx, "get_job", 42)
//
// Errors:
//
//	Dial failures are retried with exponential backoff (RetryCount). A command that was
//	sent is never sent again, so a transport error after sending leaves the outcome unknown.
package client
