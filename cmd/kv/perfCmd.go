package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dbsrv/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance test of the key-value area of a calculation",
		Long: `Runs a series of parallel benchmarks against the server. Every operation opens its own
connection, so the results include the handshake. Use a calculation id that is not used otherwise.`,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             []string
)

// perfCase is a single benchmark. If seed is set all keys are written before the run.
type perfCase struct {
	name string
	seed bool
	op   func(i int, key string) error
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance test of the dbsrv key-value area")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Calculation: %d, Threads: %d, Keys: %d\n\n", util.GetCalcID(), perfNumThreads, perfKeySpread)

	small := []byte("test")
	large := make([]byte, perfLargeValueSizeKB*1024)

	cases := []perfCase{
		{name: "set", op: func(_ int, k string) error { return calcData.Set(k, small, 0) }},
		{name: "set-large", op: func(_ int, k string) error { return calcData.Set(k, large, 0) }},
		{name: "get", seed: true, op: func(_ int, k string) error { _, _, err := calcData.Get(k); return err }},
		{name: "has", seed: true, op: func(_ int, k string) error { _, err := calcData.Has(k); return err }},
		{name: "has-not", op: func(_ int, k string) error { _, err := calcData.Has(k + "-missing"); return err }},
		{name: "delete", seed: true, op: func(_ int, k string) error { return calcData.Delete(k) }},
		{name: "mixed", seed: true, op: func(i int, k string) error {
			var err error
			switch i % 4 {
			case 0:
				err = calcData.Set(k, small, 0)
			case 1:
				_, _, err = calcData.Get(k)
			case 2:
				_, err = calcData.Has(k)
			case 3:
				err = calcData.Delete(k)
			}
			return err
		}},
	}

	results := make(map[string]testing.BenchmarkResult, len(cases))
	for _, c := range cases {
		if slices.Contains(perfSkip, c.name) {
			printResult(c.name, testing.BenchmarkResult{})
			continue
		}
		results[c.name] = benchmark(c)
		printResult(c.name, results[c.name])
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %w", err)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// benchmark runs a case in parallel on perfNumThreads goroutines and removes its keys afterwards
func benchmark(c perfCase) testing.BenchmarkResult {
	keys := make([]string, perfKeySpread)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, c.name, i)
	}

	return testing.Benchmark(func(b *testing.B) {
		if c.seed {
			for _, k := range keys {
				if err := calcData.Set(k, []byte("test"), 0); err != nil {
					log.Printf("(%s) - error preparing key: %v\n", c.name, err)
				}
			}
		}
		b.Cleanup(func() {
			for _, k := range keys {
				if err := calcData.Delete(k); err != nil {
					log.Printf("(%s) - error deleting key: %v\n", c.name, err)
				}
			}
		})

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			i := 0
			for pb.Next() {
				if err := c.op(i, keys[i%len(keys)]); err != nil {
					log.Printf("(%s) - error: %v\n", c.name, err)
				}
				i++
			}
		})
	})
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.N == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1)
	opsPerSec := 1e9 / nsPerOp
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	config := util.GetClientConfig()
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec",
		"Endpoint", "TimeoutSec", "RetryCount", "CalcID",
		"Serializer", "Transport", "Threads", "LargeValueSizeKB", "Keys",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, test := range names {
		nsPerOp := math.Max(float64(results[test].NsPerOp()), 1)
		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", 1e9/nsPerOp),
			config.Endpoint,
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.FormatInt(util.GetCalcID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %w", test, err)
		}
	}
	return writer.Error()
}
