package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dbsrv/cmd/call"
	"github.com/ValentinKolb/dbsrv/cmd/jobs"
	"github.com/ValentinKolb/dbsrv/cmd/kv"
	"github.com/ValentinKolb/dbsrv/cmd/lock"
	"github.com/ValentinKolb/dbsrv/cmd/serve"
	"github.com/ValentinKolb/dbsrv/cmd/util"
	"github.com/ValentinKolb/dbsrv/rpc/common"
	"github.com/spf13/cobra"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dbsrv",
		Short: "authenticated database command server",
		Long: fmt.Sprintf(`dbsrv (v%s)

A small server that mediates access to a shared job database for a fleet of
workers. Clients authenticate with a shared secret and send one command per
connection: functions (e.g. ping, sum) or methods of the database (e.g. .get_job).`, common.Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dbsrv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dbsrv v%s\n", common.Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(call.CallCmd)
	RootCmd.AddCommand(call.StopCmd)
	RootCmd.AddCommand(jobs.JobCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (binary, json, gob), must match the server"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
