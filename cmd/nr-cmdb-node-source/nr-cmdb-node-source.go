package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/newrelic/nr-cmdb-node-source/internal/provider/newrelic"
	_ "github.com/newrelic/nr-cmdb-node-source/internal/provider/puppetdb"
	_ "github.com/newrelic/nr-cmdb-node-source/internal/provider/sqlite"

	"github.com/newrelic/nr-cmdb-node-source/internal/inventory"
	"github.com/newrelic/nr-cmdb-node-source/internal/mapper"
	"github.com/newrelic/nr-cmdb-node-source/internal/output"
	"github.com/newrelic/nr-cmdb-node-source/internal/sync"
	"github.com/newrelic/nr-cmdb-node-source/pkg/interop"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "nr-cmdb-node-source",
	Short: "Publish CMDB inventory as a node resource document",
	Long: `nr-cmdb-node-source reads host records from an inventory provider,
maps them to nodes using a mapping file and writes a resource document
that a job scheduler can consume as a node source.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync and write the resource document",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

var (
	factsFile string
	certname  string
	username  string
	format    string
)

var validateCmd = &cobra.Command{
	Use:   "validate <mapping-file>",
	Short: "Check a mapping file and optionally apply it to a facts document",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runSync(cmd *cobra.Command, args []string) error {
	i, err := interop.NewInteroperability(configFile)
	if err != nil {
		return fmt.Errorf("failed to create interop: %w", err)
	}

	defer i.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncer, err := sync.New(i)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	result, err := syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	i.Logger.Infof(
		"run %s converted %d of %d records, %d skipped",
		result.RunID,
		result.Converted,
		result.TotalRecords,
		result.Skipped,
	)

	if result.LastSync != nil {
		i.Logger.Infof("previous successful sync at %s", result.LastSync.Format(time.RFC3339))
	}

	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	mapping, err := mapper.LoadFile(args[0])
	if err != nil {
		return err
	}

	if factsFile == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "mapping %s is valid\n", args[0])
		for _, f := range mapping.Fields() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", f.Name, f.Rule)
		}
		return nil
	}

	data, err := os.ReadFile(factsFile)
	if err != nil {
		return err
	}

	record := inventory.Record{Certname: certname}
	if err := json.Unmarshal(data, &record.Facts); err != nil {
		return fmt.Errorf("failed to parse facts %s: %w", factsFile, err)
	}

	var opts []mapper.Option
	if username != "" {
		opts = append(opts, mapper.WithDefaultUsername(username))
	}

	entry, ok := mapper.New(opts...).Apply(&record, mapping)
	if !ok {
		return fmt.Errorf("no hostname could be resolved from %s", factsFile)
	}

	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}

	return output.Write(cmd.OutOrStdout(), f, []inventory.NodeEntry{*entry})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default configs/config.yml or ./config.yml)")

	validateCmd.Flags().StringVar(&factsFile, "facts", "", "JSON facts document to apply the mapping to")
	validateCmd.Flags().StringVar(&certname, "certname", "", "certname of the facts document")
	validateCmd.Flags().StringVar(&username, "default-username", "", "username used when the mapping resolves none")
	validateCmd.Flags().StringVar(&format, "format", "json", "output format (json or yaml)")

	rootCmd.AddCommand(syncCmd, validateCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
