package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pramitgaha/map-error/cmd/util"
	"github.com/pramitgaha/map-error/lib/users"
	"github.com/pramitgaha/map-error/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"lukechampine.com/uint128"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for smap servers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)

	// perfKeyBase keeps the test keys away from the small keys used by seed
	perfKeyBase = uint128.New(0, 1<<63)

	// perfTimers holds the client side latency of every test
	perfTimers = gometrics.NewRegistry()
)

// perfTest is one benchmark of the perf command
type perfTest struct {
	name    string
	prepare bool // insert all keys before the benchmark
	op      func(key uint128.Uint128, counter int) error
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the user for the insert-large test should be (in KB)"))
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
	fmt.Println("Performance testing tool for smap servers")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	small := users.User{Name: "perf", FavNumbers: [][]byte{[]byte("test")}}
	large := users.User{Name: "perf-large", FavNumbers: [][]byte{make([]byte, perfLargeValueSizeKB*1024)}}

	tests := []perfTest{
		{name: "insert", op: func(k uint128.Uint128, _ int) error {
			_, err := rpcStore.Insert(k, small)
			return err
		}},
		{name: "insert-large", op: func(k uint128.Uint128, _ int) error {
			_, err := rpcStore.Insert(k, large)
			return err
		}},
		{name: "get", prepare: true, op: func(k uint128.Uint128, _ int) error {
			_, _, err := rpcStore.Get(k)
			return err
		}},
		{name: "remove", prepare: true, op: func(k uint128.Uint128, _ int) error {
			_, err := rpcStore.Remove(k)
			return err
		}},
		{name: "has", prepare: true, op: func(k uint128.Uint128, _ int) error {
			_, err := rpcStore.Has(k)
			return err
		}},
		{name: "has-not", op: func(k uint128.Uint128, _ int) error {
			_, err := rpcStore.Has(k)
			return err
		}},
		{name: "scan", prepare: true, op: func(k uint128.Uint128, _ int) error {
			_, err := rpcStore.Scan(k, 10)
			return err
		}},
		{name: "mixed", prepare: true, op: func(k uint128.Uint128, counter int) error {
			var err error
			switch counter % 4 {
			case 0:
				_, err = rpcStore.Insert(k, small)
			case 1:
				_, _, err = rpcStore.Get(k)
			case 2:
				_, err = rpcStore.Remove(k)
			case 3:
				_, err = rpcStore.Has(k)
			}
			return err
		}},
	}

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)
	for i, test := range tests {
		result := runPerfTest(uint64(i), test, small)
		results[test.name] = result
		printResult(test.name, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runPerfTest benchmarks one test on its own key range
func runPerfTest(index uint64, test perfTest, prepareUser users.User) testing.BenchmarkResult {
	timer := gometrics.GetOrRegisterTimer(test.name, perfTimers)

	return testing.Benchmark(func(b *testing.B) {
		if shouldSkip(test.name) {
			return
		}

		getKey, iter := getKeys(index)

		if test.prepare {
			iter(func(k uint128.Uint128) {
				if _, err := rpcStore.Insert(k, prepareUser); err != nil {
					log.Printf("(%s) - error inserting key: %v\n", test.name, err)
				}
			})
		}

		b.Cleanup(func() {
			iter(func(k uint128.Uint128) {
				if _, err := rpcStore.Remove(k); err != nil {
					log.Printf("(%s) - error removing key: %v\n", test.name, err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := test.op(getKey(counter), counter); err != nil {
					log.Printf("(%s) - error: %v\n", test.name, err)
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// getKeys creates the test keys of a test and functions to work with them
func getKeys(index uint64) (func(int) uint128.Uint128, func(func(uint128.Uint128))) {
	base := perfKeyBase.Add64(index << 32)
	keys := make([]uint128.Uint128, perfKeySpread)
	for i := range keys {
		keys[i] = base.Add64(uint64(i))
	}

	getKey := func(i int) uint128.Uint128 {
		return keys[i%perfKeySpread]
	}

	iterateKeys := func(fn func(uint128.Uint128)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test with the latency percentiles of its timer
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1)
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	p := gometrics.GetOrRegisterTimer(test, perfTimers).Snapshot().Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p99=%s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec, time.Duration(p[0]), time.Duration(p[1]))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P99Ns", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}
		p := gometrics.GetOrRegisterTimer(test, perfTimers).Snapshot().Percentiles([]float64{0.5, 0.99})

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", p[0]),
			fmt.Sprintf("%.0f", p[1]),
			skipped,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
