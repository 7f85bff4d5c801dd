package main

import (
	"fmt"
	"os"

	hexadlog "github.com/meridiandb/hexad/pkg/log"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hexadnode",
	Short: "hexadnode - a Hexad federation orchestrator node",
	Long: `hexadnode runs one member of a Hexad federation cluster: a
hand-rolled Raft replica of the backend store registry, and an HTTP
endpoint that fans a federated query out across whichever backend
adapters the registry currently maps.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"hexadnode version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(proposeCmd)
	rootCmd.AddCommand(queryCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	hexadlog.Init(hexadlog.Config{
		Level:      hexadlog.Level(logLevel),
		JSONOutput: logJSON,
	})
}
