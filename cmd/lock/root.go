package lock

import (
	"encoding/hex"
	"fmt"

	"github.com/ValentinKolb/dbsrv/cmd/util"
	"github.com/ValentinKolb/dbsrv/lib/lockmgr"
	"github.com/ValentinKolb/dbsrv/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcLockMgr lockmgr.ILockManager
	lockTTL    uint64

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:   "lock",
		Short: "Acquire and release the locks of a calculation",
		Long: `Acquire and release named locks. Locks belong to the calculation given with --calc-id,
the same name can be locked by different calculations at the same time.`,
		PersistentPreRunE: setupLockClient,
	}

	acquireCmd = &cobra.Command{
		Use:   "acquire [name]",
		Short: "Acquire a lock and print the owner id needed to release it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ok, owner, err := rpcLockMgr.AcquireLock(args[0], lockTTL)
			if err != nil {
				return fmt.Errorf("failed to acquire lock: %w", err)
			}
			if !ok {
				fmt.Println("acquired=false")
				return nil
			}
			fmt.Printf("acquired=true, owner=%s\n", hex.EncodeToString(owner))
			return nil
		},
	}

	releaseCmd = &cobra.Command{
		Use:   "release [name] [owner]",
		Short: "Release a lock with the owner id printed by acquire",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			owner, err := hex.DecodeString(args[1])
			if err != nil {
				return fmt.Errorf("owner must be a hex string: %w", err)
			}
			ok, err := rpcLockMgr.ReleaseLock(args[0], owner)
			if err != nil {
				return fmt.Errorf("failed to release lock: %w", err)
			}
			fmt.Printf("released=%v\n", ok)
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)

	util.SetupRPCClientFlags(LockCommands)
	LockCommands.PersistentFlags().Int64("calc-id", 0, util.WrapString("The calculation the locks belong to"))

	acquireCmd.Flags().Uint64Var(&lockTTL, "ttl", 30, util.WrapString("Release the lock automatically after this many seconds (0 = never)"))
}

// setupLockClient initializes the lock manager client
func setupLockClient(cmd *cobra.Command, _ []string) error {
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

	rpcLockMgr, err = client.NewRPCLockMgr(util.GetCalcID(), *util.GetClientConfig(), t, s)
	return err
}
