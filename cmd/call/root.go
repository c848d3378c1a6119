package call

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dbsrv/cmd/util"
	"github.com/ValentinKolb/dbsrv/rpc/client"
	"github.com/ValentinKolb/dbsrv/rpc/common"
	"github.com/spf13/cobra"
)

var (
	rpcClient client.IRPCClient

	// CallCmd sends a single command to the server
	CallCmd = &cobra.Command{
		Use:   "call [name] [args...]",
		Short: "Send a command to the server and print the result",
		Long: `Send a command to the server and print the result.

Arguments are converted to integers, floats, booleans (true, false), null or JSON
lists and objects where possible, everything else is sent as string. Use the prefix
s: to force a string (e.g. s:42). Names starting with '.' are methods, they are
called for the calculation given with --calc-id.`,
		Example: `  dbsrv call ping
  dbsrv call sum 1 2 3.5
  dbsrv call .get_job --calc-id 42`,
		Args:              cobra.MinimumNArgs(1),
		PersistentPreRunE: setupClient,
		RunE:              runCall,
	}

	// StopCmd asks the server to shut down
	StopCmd = &cobra.Command{
		Use:               "stop",
		Short:             "Stop the server",
		Args:              cobra.NoArgs,
		PersistentPreRunE: setupClient,
		RunE:              runStop,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	util.SetupRPCClientFlags(CallCmd)
	util.SetupRPCClientFlags(StopCmd)

	CallCmd.Flags().Int64("calc-id", 0, util.WrapString("The calculation id of a method command"))
}

// setupClient initializes the RPC client
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	rpcClient, err = client.NewRPCClient(*util.GetClientConfig(), t, s)
	return err
}

func runCall(cmd *cobra.Command, args []string) error {
	name := args[0]
	values := util.ParseArgs(args[1:])

	var (
		res any
		err error
	)
	if strings.HasPrefix(name, common.MethodPrefix) {
		res, err = rpcClient.CallMethod(cmd.Context(), name, util.GetCalcID(), values...)
	} else {
		res, err = rpcClient.Call(cmd.Context(), name, values...)
	}
	if err != nil {
		return err
	}

	fmt.Println(util.FormatResult(res))
	return nil
}

func runStop(cmd *cobra.Command, _ []string) error {
	if err := rpcClient.Stop(cmd.Context()); err != nil {
		return fmt.Errorf("failed to stop the server: %w", err)
	}
	fmt.Println("server stopped")
	return nil
}
