package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"grammarrelay/internal/config"
	"grammarrelay/internal/store"
)

type rootOptions struct {
	configPath  string
	storagePath string
	logLevel    string
	cfg         *config.Config
}

// NewRootCommand creates the root command
func NewRootCommand(version, commit, date string) *cobra.Command {
	o := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "grammarrelay",
		Short: "Streaming English grammar analysis relay and client",
		Long: `grammarrelay runs the analysis relay that streams a model's grammar report
as server-sent events, and a terminal client that requests analyses, types the
report out as it arrives and keeps a short history.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(o.configPath)
			if err != nil {
				return err
			}
			if o.logLevel != "" {
				cfg.Log.Level = o.logLevel
			}
			if o.storagePath != "" {
				cfg.Client.StoragePath = o.storagePath
			}
			config.SetupLogger(cfg.Log)
			o.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&o.storagePath, "storage", "", "settings and history file (default from config)")
	rootCmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCommand(o))
	rootCmd.AddCommand(newAnalyzeCommand(o))
	rootCmd.AddCommand(newHistoryCommand(o))
	rootCmd.AddCommand(newSettingsCommand(o))
	rootCmd.AddCommand(newVersionCommand(version, commit, date))

	return rootCmd
}

func (o *rootOptions) storage() (*store.FileKV, *store.SettingsStore, *store.HistoryStore) {
	kv := store.NewFileKV(o.cfg.Client.StoragePath)
	return kv, store.NewSettingsStore(kv), store.NewHistoryStore(kv)
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			if version == "dev" || version == "" {
				version = "development"
			}
			if commit == "none" || commit == "" {
				commit = "local-build"
			}
			if date == "unknown" || date == "" {
				date = "local-build"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "grammarrelay %s (%s) built on %s\n", version, commit, date)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
