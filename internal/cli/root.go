// Package cli provides the command-line interface for alto.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/altostore/altostore/internal/logging"
)

var (
	// Global flags
	cfgFile  string
	verbose  bool
	jsonLogs bool

	// Global logger
	logger zerolog.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// Version information - set by the main package at startup via LDFLAGS.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "alto",
		Short: "alto - segmented transfers for Azure-compatible object storage",
		Long: `alto ` + Version + ` - Built: ` + BuildTime + `
Uploads and downloads blobs with parallel segmented transfers, SharedKey
request signing and SAS token generation.

Credentials come from flags, the config file, or ALTO_* environment
variables (ALTO_ACCOUNT, ALTO_KEY).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cmd); err != nil {
				return err
			}
			if jsonLogs {
				logger = logging.NewJSONLogger(os.Stderr, verbose)
			} else {
				logger = logging.NewCLILogger(verbose)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default ~/.alto.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON instead of console output")

	rootCmd.PersistentFlags().String("account", "", "Storage account name")
	rootCmd.PersistentFlags().String("key", "", "Storage account access key (Base64)")
	rootCmd.PersistentFlags().String("endpoint", "", "Path-style endpoint override, e.g. http://127.0.0.1:10000")
	rootCmd.PersistentFlags().Bool("emulator", false, "Use the local storage emulator account")
	rootCmd.PersistentFlags().Int("concurrency", 0, "Worker count for segmented transfers (0 = default)")
	rootCmd.PersistentFlags().Int("chunk-size-mib", 0, "Chunk size in MiB for segmented transfers (0 = default)")

	rootCmd.PersistentFlags().String("proxy-mode", "", "Proxy mode: no-proxy, system, basic, ntlm")
	rootCmd.PersistentFlags().String("proxy-host", "", "Proxy host")
	rootCmd.PersistentFlags().Int("proxy-port", 0, "Proxy port (default 8080)")
	rootCmd.PersistentFlags().String("proxy-user", "", "Proxy username")
	rootCmd.PersistentFlags().String("proxy-password", "", "Proxy password")
	rootCmd.PersistentFlags().String("no-proxy", "", "Comma-separated proxy bypass list")

	rootCmd.Version = Version + " (" + BuildTime + ")"

	return rootCmd
}

// initConfig wires flags, the optional config file and ALTO_* environment
// variables into one view. Precedence: flag, then env, then config file.
func initConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".alto")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ALTO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return err
	}
	if err := viper.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit or broken one
		// is not.
		if cfgFile != "" {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling transfers...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)
	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newSASCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// GetContext returns the global CLI context with signal handling.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
