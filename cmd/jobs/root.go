package jobs

import (
	"github.com/ValentinKolb/dbsrv/cmd/util"
	"github.com/ValentinKolb/dbsrv/lib/jobs"
	"github.com/ValentinKolb/dbsrv/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcJobDB jobs.IJobDB

	// JobCommands represents the jobs command group
	JobCommands = &cobra.Command{
		Use:               "jobs",
		Short:             "Perform operations on the job database",
		PersistentPreRunE: setupJobClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the jobs command
	util.SetupRPCClientFlags(JobCommands)

	// Add subcommands
	JobCommands.AddCommand(createCmd)
	JobCommands.AddCommand(getCmd)
	JobCommands.AddCommand(listCmd)
	JobCommands.AddCommand(statusCmd)
	JobCommands.AddCommand(logCmd)
	JobCommands.AddCommand(logsCmd)
	JobCommands.AddCommand(deleteCmd)
}

// setupJobClient initializes the job database client
func setupJobClient(cmd *cobra.Command, _ []string) error {
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

	rpcJobDB, err = client.NewRPCJobDB(*util.GetClientConfig(), t, s)
	return err
}
