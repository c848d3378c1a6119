package kv

import (
	"github.com/ValentinKolb/dbsrv/cmd/util"
	"github.com/ValentinKolb/dbsrv/rpc/client"
	"github.com/spf13/cobra"
)

var (
	calcData client.ICalcData

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:   "kv",
		Short: "Read and write the key-value area of a calculation",
		Long: `Read and write values stored on the server for the calculation given with --calc-id.
Values of different calculations are independent of each other.`,
		PersistentPreRunE: setupKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)
	KeyValueCommands.PersistentFlags().Int64("calc-id", 0, util.WrapString("The calculation the values belong to"))

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient initializes the client of the calculation data
func setupKVClient(cmd *cobra.Command, _ []string) error {
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

	calcData, err = client.NewRPCCalcData(util.GetCalcID(), *util.GetClientConfig(), t, s)
	return err
}
