// Command lpgdb is a minimal administrative CLI over the database façade
// (pkg/lpgdb). It is explicitly not a query-language front end (spec.md
// §1 treats query syntax as an external, replaceable collaborator): exec
// builds a fixed node-scan/limit/return plan from flags rather than
// parsing free-form query text.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lpgdb/lpgdb/pkg/config"
	"github.com/lpgdb/lpgdb/pkg/lpgdb"
	"github.com/lpgdb/lpgdb/pkg/plan"
	"github.com/lpgdb/lpgdb/pkg/value"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "lpgdb",
		Short: "lpgdb administrative CLI",
		Long: `lpgdb is an embeddable labeled-property-graph database.

This command is a thin administrative surface over the database façade —
open a database, run one fixed node scan, or print the version — not a
query-language shell.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lpgdb v%s\n", version)
		},
	})

	openCmd := &cobra.Command{
		Use:   "open [path]",
		Short: "Open (or create) a database and report its status",
		Args:  cobra.ExactArgs(1),
		RunE:  runOpen,
	}
	rootCmd.AddCommand(openCmd)

	execCmd := &cobra.Command{
		Use:   "exec [path]",
		Short: "Scan nodes, optionally filtered by label, and print them as a table",
		Args:  cobra.ExactArgs(1),
		RunE:  runExec,
	}
	execCmd.Flags().String("label", "", "restrict the scan to nodes carrying this label")
	execCmd.Flags().Uint64("limit", 100, "maximum number of rows to print")
	rootCmd.AddCommand(execCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openDB(path string) (*lpgdb.DB, error) {
	cfg := config.DefaultConfig()
	cfg.DataDir = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key, err := cfg.WALKey()
	if err != nil {
		return nil, err
	}
	return lpgdb.Open(lpgdb.Options{
		Path:              cfg.DataDir,
		WALSyncMode:       cfg.WALSyncMode(),
		WALBatchInterval:  cfg.WALBatchInterval,
		WALEncryptionKey:  key,
		SnapshotKeepCount: cfg.SnapshotKeepCount,
	})
}

func runOpen(cmd *cobra.Command, args []string) error {
	db, err := openDB(args[0])
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	fmt.Printf("opened %s\n", args[0])
	fmt.Printf("  nodes: %d\n", db.NodeCount())
	fmt.Printf("  edges: %d\n", db.EdgeCount())
	if stats, ok := db.WalStatus(); ok {
		fmt.Printf("  wal records appended: %d\n", stats.RecordsAppended)
		fmt.Printf("  wal bytes written:    %d\n", stats.BytesWritten)
	}
	return nil
}

func runExec(cmd *cobra.Command, args []string) error {
	label, _ := cmd.Flags().GetString("label")
	limit, _ := cmd.Flags().GetUint64("limit")

	db, err := openDB(args[0])
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	var labelPtr *string
	if label != "" {
		labelPtr = &label
	}

	logical := plan.Return(map[string]plan.Expression{"n": plan.Var("n")},
		plan.Limit(limit, plan.NodeScan("n", labelPtr, plan.Empty())))

	result, err := db.Execute(logical, nil)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	printTable(result)
	return nil
}

func printTable(result *lpgdb.Result) {
	for i, col := range result.Columns {
		if i > 0 {
			fmt.Print("\t")
		}
		fmt.Print(col)
	}
	fmt.Println()

	for _, row := range result.Rows {
		for i, v := range row {
			if i > 0 {
				fmt.Print("\t")
			}
			fmt.Print(formatValue(v))
		}
		fmt.Println()
	}
	fmt.Printf("(%d rows)\n", len(result.Rows))
}

func formatValue(v value.Value) string {
	if v.IsNull() {
		return "null"
	}
	return v.String()
}
