// evervoid runs the turn-synchronized strategy server and a headless client.
//
// Usage:
//
//	evervoid server              - Host a match
//	evervoid client              - Join a match from the terminal
//	evervoid save pretty <file>  - Print a save file as pretty Value text
//	evervoid save hash <file>    - Print the state hash of a save file
package main

import (
	"fmt"
	"os"

	"github.com/cbodonnell/evervoid/pkg/config"
	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/version"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	flagLogLevel string
	flagGameData string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "evervoid",
	Short:         "EverVoid - turn-based space strategy over the network",
	Version:       version.Get(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := log.ParseLogLevel(flagLogLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level: %v", err)
		}
		log.SetDefaultLogger(log.New(os.Stdout, "", log.DefaultLoggerFlag, level))
		log.Debug("Log level set to %s", level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", config.Getenv(config.EnvLogLevel, "info"), "Log level (error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().StringVar(&flagGameData, "game-data", config.Getenv(config.EnvGameData, ""), "Path to a game data file (default: ./configs/gamedata.yaml or built-in)")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(saveCmd)
}

func loadGameData() (*config.GameData, error) {
	data, err := config.LoadGameData(flagGameData)
	if err != nil {
		return nil, fmt.Errorf("failed to load game data: %v", err)
	}
	return data, nil
}
