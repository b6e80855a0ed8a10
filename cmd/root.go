package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	logLevel string

	// Log is the process logger, configured before any command runs.
	Log = zerolog.Nop()
)

var RootCmd = &cobra.Command{
	Use:   "db-shuttle",
	Short: "Copy tables between databases",
	Long: `
  ___  ___     ___ _  _ _   _ _____ _____ _    ___ 
 |   \| _ )   / __| || | | | |_   _|_   _| |  | __|
 | |) | _ \   \__ \ __ | |_| | | |   | | | |__| _| 
 |___/|___/   |___/_||_|\___/  |_|   |_| |____|___|

DB SHUTTLE - copy selected tables and columns from one database to another
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(viper.GetString("log.level"))
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).
			With().Timestamp().Logger()

		if used := viper.ConfigFileUsed(); used != "" {
			Log.Debug().Str("file", used).Msg("Using config file")
		}
		return nil
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-shuttle.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level"))
	viper.SetDefault("log.level", "warn")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		if ex, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}
		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("db-shuttle")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DBSHUTTLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Could not read config file:", err)
	}
}
