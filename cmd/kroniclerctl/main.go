package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/JakeRoggenbuck/kronicler"
)

var (
	Version = "dev"

	flagDirectory string
	flagJSONLogs  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kroniclerctl",
	Short:   "Inspect and query a kronicler capture database",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDirectory, "dir", kronicler.DefaultDirectory, "capture database directory")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "log-json", false, "emit structured logs as JSON instead of console format")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(averageCmd)
	rootCmd.AddCommand(containsCmd)
	rootCmd.AddCommand(serveMetricsCmd)
}

func openDB() (*kronicler.Database, error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if !flagJSONLogs {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return kronicler.New(kronicler.DefaultConfig().
		WithDirectory(flagDirectory).
		WithSyncConsume(true).
		WithLogger(logger))
}

// row is the JSON shape kroniclerctl prints, one rows-column per field,
// matching the tuple kronicler.Row reconstructs from the four columns.
type row struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	StartNs int64  `json:"start_ns"`
	DeltaNs int64  `json:"delta_ns"`
}

func toRow(r kronicler.Row) row {
	return row{ID: r.ID, Name: r.Name, StartNs: r.StartNs, DeltaNs: r.DeltaNs}
}

var fetchID uint64

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Print the row assigned --id as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		r, err := db.Fetch(fetchID)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(toRow(r))
	},
}

func init() {
	fetchCmd.Flags().Uint64Var(&fetchID, "id", 0, "row id to fetch")
	fetchCmd.MarkFlagRequired("id")
}

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Stream every row in id order as JSON lines, up to --limit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		enc := json.NewEncoder(os.Stdout)
		printed := 0
		return db.Logs(func(r kronicler.Row) error {
			if logsLimit > 0 && printed >= logsLimit {
				return nil
			}
			printed++
			return enc.Encode(toRow(r))
		})
	},
}

func init() {
	logsCmd.Flags().IntVar(&logsLimit, "limit", 0, "maximum rows to print (0 means no limit)")
}

var averageName string

var averageCmd = &cobra.Command{
	Use:   "average",
	Short: "Print the mean delta_ns of rows with --name as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		avg, err := db.Average(averageName)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(struct {
			Name      string  `json:"name"`
			AverageNs float64 `json:"average_ns"`
		}{Name: averageName, AverageNs: avg})
	},
}

func init() {
	averageCmd.Flags().StringVar(&averageName, "name", "", "function or endpoint name to average")
	averageCmd.MarkFlagRequired("name")
}

var containsName string

var containsCmd = &cobra.Command{
	Use:   "contains",
	Short: "Print whether any row has --name as JSON; exits 1 if not found",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ok, err := db.ContainsName(containsName)
		if err != nil {
			return err
		}
		if err := json.NewEncoder(os.Stdout).Encode(struct {
			Name   string `json:"name"`
			Exists bool   `json:"exists"`
		}{Name: containsName, Exists: ok}); err != nil {
			return err
		}
		if !ok {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	containsCmd.Flags().StringVar(&containsName, "name", "", "function or endpoint name to check")
	containsCmd.MarkFlagRequired("name")
}

var serveMetricsAddr string

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Serve Prometheus metrics for this capture database over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		mux := http.NewServeMux()
		mux.Handle("/metrics", db.MetricsHandler())
		fmt.Printf("serving metrics on http://%s/metrics\n", serveMetricsAddr)
		return http.ListenAndServe(serveMetricsAddr, mux)
	},
}

func init() {
	serveMetricsCmd.Flags().StringVar(&serveMetricsAddr, "addr", "127.0.0.1:9090", "address to serve /metrics on")
}
