package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dbsrv/cmd/util"
	"github.com/ValentinKolb/dbsrv/rpc/common"
	"github.com/ValentinKolb/dbsrv/rpc/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the dbsrv server",
		Long: `Start the dbsrv server with the specified configuration. The configuration can be set via command line flags,
environment variables or a config file. The format of the environment variables is DBSRV_<flag> (e.g. DBSRV_AUTHKEY=secret).`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "127.0.0.1:1907", cmdUtil.WrapString("The address on which the server will listen (e.g. 127.0.0.1:1907, /tmp/dbsrv.sock, ...)"))

	key = "authkey"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The shared secret clients have to prove (required, better set via DBSRV_AUTHKEY)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Deadline of a single command in seconds (0 = none)"))

	key = "auth-timeout"
	ServeCmd.PersistentFlags().Int64(key, common.DefaultAuthTimeoutSecond, cmdUtil.WrapString("Deadline of the authentication handshake and of reading a command in seconds"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, 1, cmdUtil.WrapString("Number of commands executed concurrently. 1 executes all commands strictly in order"))

	key = "max-message-size"
	ServeCmd.PersistentFlags().Int(key, common.DefaultMaxMessageBytes, cmdUtil.WrapString("Largest accepted command in bytes"))

	key = "store"
	ServeCmd.PersistentFlags().String(key, string(common.StoreTypeMemory), cmdUtil.WrapString("The backend store (memory, badger)"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Directory of the badger store"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the prometheus metrics endpoint (e.g. 127.0.0.1:9090, empty = disabled)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "config"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional config file (yaml, json, toml, ...) with the same keys as the flags"))
}

// processConfig reads the configuration from the command line flags, environment variables and
// the config file and converts it to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.AuthKey = viper.GetString("authkey")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.AuthTimeoutSecond = viper.GetInt64("auth-timeout")
	serveCmdConfig.Workers = viper.GetInt("workers")
	serveCmdConfig.MaxMessageBytes = viper.GetInt("max-message-size")
	serveCmdConfig.Store = common.StoreConfig{
		Type:    common.StoreType(strings.ToLower(viper.GetString("store"))),
		DataDir: viper.GetString("data-dir"),
	}
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return serveCmdConfig.Validate()
}

// run starts the server and blocks until it is stopped
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
		nil,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serv.Serve(ctx)
}

// initConfig reads in ENV variables and .env files if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(cmdUtil.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
