// Package main provides the OverlayDB CLI entry point.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orneryd/overlaydb/pkg/config"
	"github.com/orneryd/overlaydb/pkg/nornicdb"
	"github.com/orneryd/overlaydb/pkg/views"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "overlaydb",
		Short: "OverlayDB - graph storage with per-transaction virtual entities",
		Long: `OverlayDB is an embedded graph store written in Go.

Every transaction can create virtual nodes, relationships, labels, property
keys and relationship types that only it can see, merged transparently with
the shared real graph stored in BadgerDB.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Config file (default: search standard locations)")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (overrides config)")
	rootCmd.PersistentFlags().Bool("in-memory", false, "Run BadgerDB in memory (nothing is persisted)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "OverlayDB v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	// Init command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Initialize a new OverlayDB data directory",
		RunE:  runInit,
	})

	// Stats command
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE:  runStats,
	}
	statsCmd.Flags().Bool("json", false, "Print statistics as JSON")
	rootCmd.AddCommand(statsCmd)

	// Views command
	viewsCmd := &cobra.Command{
		Use:   "views",
		Short: "Manage named views",
	}
	viewsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List defined views",
		RunE:  runViewsList,
	})
	defineCmd := &cobra.Command{
		Use:   "define NAME",
		Short: "Define a view",
		Args:  cobra.ExactArgs(1),
		RunE:  runViewsDefine,
	}
	defineCmd.Flags().String("query", "", "Query text the view is declared with")
	defineCmd.Flags().StringSlice("labels", nil, "Node labels selected by the view")
	defineCmd.Flags().StringSlice("types", nil, "Relationship types selected by the view")
	viewsCmd.AddCommand(defineCmd)
	viewsCmd.AddCommand(&cobra.Command{
		Use:   "drop NAME",
		Short: "Drop a view",
		Args:  cobra.ExactArgs(1),
		RunE:  runViewsDrop,
	})
	rootCmd.AddCommand(viewsCmd)

	// Backup / restore commands
	rootCmd.AddCommand(&cobra.Command{
		Use:   "backup FILE",
		Short: "Write a full backup of the real graph and view catalog",
		Args:  cobra.ExactArgs(1),
		RunE:  runBackup,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "restore FILE",
		Short: "Restore a backup into an empty data directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runRestore,
	})

	// Demo command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "demo",
		Short: "Show two transactions with private virtual entities over one shared graph",
		RunE:  runDemo,
	})

	return rootCmd
}

// loadConfig applies defaults < config file < environment < flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("data-dir") {
		cfg.Database.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("in-memory") {
		cfg.Database.InMemory, _ = cmd.Flags().GetBool("in-memory")
	}
	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		cfg.Logging.Level = strings.ToLower(level)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := setLogOutput(cfg.Logging.Output); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setLogOutput(output string) error {
	var w io.Writer
	switch output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log output: %w", err)
		}
		w = f
	}
	log.SetOutput(w)
	return nil
}

func openDB(cmd *cobra.Command) (*nornicdb.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	db, err := nornicdb.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.InMemory {
		return fmt.Errorf("init needs an on-disk data directory")
	}
	dataDir := cfg.Database.DataDir
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "📂 Initializing OverlayDB database in %s\n", dataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dataDir, err)
	}

	configPath := filepath.Join(dataDir, "overlaydb.yaml")
	configContent := fmt.Sprintf(`# OverlayDB Configuration
database:
  data_dir: %s
  sync_writes: false
  low_memory: false

overlay:
  max_scopes: 0                 # 0 = unlimited
  view_cache_max_entries: 64    # per transaction, 0 = unlimited

logging:
  level: info
  format: json
  output: stderr
`, dataDir)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
	}

	// Opening once creates the Badger files and sequences.
	db, err := nornicdb.Open(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := db.Close(); err != nil {
		return err
	}

	fmt.Fprintln(out, "✅ Database initialized successfully")
	fmt.Fprintf(out, "   Config: %s\n", configPath)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintln(out, "📊 Database Statistics:")
	fmt.Fprintf(out, "  Nodes:         %d\n", stats.Nodes)
	fmt.Fprintf(out, "  Relationships: %d\n", stats.Relationships)
	fmt.Fprintf(out, "  Views:         %d\n", len(stats.Views))
	if stats.LSMBytes > 0 || stats.VlogBytes > 0 {
		fmt.Fprintf(out, "  Disk:          %d bytes LSM, %d bytes value log\n", stats.LSMBytes, stats.VlogBytes)
	}
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Backup(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "💾 Backup written to %s\n", args[0])
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := nornicdb.OpenFromBackup(cfg, args[0])
	if err != nil {
		return fmt.Errorf("restoring %s: %w", args[0], err)
	}
	defer db.Close()

	stats, err := db.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Restored %d nodes, %d relationships, %d views into %s\n",
		stats.Nodes, stats.Relationships, len(stats.Views), cfg.Database.DataDir)
	return nil
}

func runViewsList(cmd *cobra.Command, args []string) error {
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	names := db.Views().List()
	if len(names) == 0 {
		fmt.Fprintln(out, "No views defined")
		return nil
	}
	for _, name := range names {
		def, err := db.Views().Get(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\tlabels=%s\ttypes=%s\t%s\n",
			def.Name,
			strings.Join(def.Labels, ","),
			strings.Join(def.RelationshipTypes, ","),
			def.Query)
	}
	return nil
}

func runViewsDefine(cmd *cobra.Command, args []string) error {
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	query, _ := cmd.Flags().GetString("query")
	labels, _ := cmd.Flags().GetStringSlice("labels")
	types, _ := cmd.Flags().GetStringSlice("types")
	if err := db.Views().Define(views.Definition{
		Name:              args[0],
		Query:             query,
		Labels:            labels,
		RelationshipTypes: types,
	}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ View %s defined\n", args[0])
	return nil
}

func runViewsDrop(cmd *cobra.Command, args []string) error {
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Views().Drop(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "🗑  View %s dropped\n", args[0])
	return nil
}
