package util

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dbsrv/rpc/common"
	"github.com/ValentinKolb/dbsrv/rpc/serializer"
	"github.com/ValentinKolb/dbsrv/rpc/transport"
	"github.com/ValentinKolb/dbsrv/rpc/transport/tcp"
	"github.com/ValentinKolb/dbsrv/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. DBSRV_AUTHKEY)
	EnvPrefix = "dbsrv"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var lines []string
	var line strings.Builder

	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > Wrap {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}

	return strings.Join(lines, "\n")
}

// --------------------------------------------------------------------------
// Client configuration
// --------------------------------------------------------------------------

// SetupRPCClientFlags adds the connection flags of the client commands
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "localhost:1907", WrapString("The address of the dbsrv server (host:port for tcp, socket path for unix)"))

	key = "authkey"
	cmd.PersistentFlags().String(key, "", WrapString("The shared secret of the server (better set via DBSRV_AUTHKEY)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 30, WrapString("The timeout in seconds of one call (0 = none)"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry connecting to the server"))

	key = "max-message-size"
	cmd.PersistentFlags().Int(key, 0, WrapString("Largest accepted reply in bytes (0 = 64 MB)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Endpoint:        viper.GetString("endpoint"),
		AuthKey:         viper.GetString("authkey"),
		TimeoutSecond:   viper.GetInt("timeout"),
		RetryCount:      viper.GetInt("retries"),
		MaxMessageBytes: viper.GetInt("max-message-size"),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	name := viper.GetString("serializer")
	s, ok := serializer.New(name)
	if !ok {
		return nil, fmt.Errorf("invalid serializer %s (expected binary, json or gob)", name)
	}
	return s, nil
}

// GetTransport creates the client transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (expected tcp or unix)", viper.GetString("transport"))
	}
}

// GetServerTransport creates the server transport based on configuration
func GetServerTransport() (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (expected tcp or unix)", viper.GetString("transport"))
	}
}

// GetCalcID retrieves the configured calculation id
func GetCalcID() int64 {
	return viper.GetInt64("calc-id")
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Argument parsing and result formatting
// --------------------------------------------------------------------------

// ParseArg converts a command line argument into a wire value. Integers, floats,
// true/false, null and JSON arrays or objects are recognized, everything else is a string.
// A leading "s:" forces a string (e.g. s:42).
func ParseArg(arg string) any {
	if s, ok := strings.CutPrefix(arg, "s:"); ok {
		return s
	}
	if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return n
	}
	// digits are required, so words like "inf" or "nan" stay strings
	if f, err := strconv.ParseFloat(arg, 64); err == nil && strings.ContainsAny(arg, "0123456789") {
		return f
	}
	switch arg {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if strings.HasPrefix(arg, "[") || strings.HasPrefix(arg, "{") {
		if v, err := parseJSON(arg); err == nil {
			return v
		}
	}
	return arg
}

// ParseArgs converts all arguments with ParseArg
func ParseArgs(args []string) []any {
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = ParseArg(a)
	}
	return values
}

// parseJSON decodes JSON keeping integers as int64
func parseJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return fromJSON(v), nil
}

func fromJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = fromJSON(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = fromJSON(x[k])
		}
		return x
	default:
		return x
	}
}

// FormatResult renders a result for the terminal. Strings are printed as they are.
func FormatResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return common.FormatValue(v)
}
