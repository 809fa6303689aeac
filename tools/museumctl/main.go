// Command museumctl runs a realtime voice session against the model from
// the terminal and inspects agent sets and recorded sessions.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tccoin/museum-agent/runtime/logger"
	"github.com/tccoin/museum-agent/runtime/version"
)

const programName = "museumctl"

var rootCmd = &cobra.Command{
	Use:           programName,
	Short:         "Museum guide realtime voice agent",
	Version:       version.GetVersion(),
	SilenceUsage:  true,  // Don't print usage on error
	SilenceErrors: false, // Do print errors
	Long: `museumctl connects a realtime voice session to the model, lets you drive
push-to-talk, interruptions and agent handoffs from the terminal, and prints the
conversation transcript as it is reconstructed.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is the normal case.
		_ = godotenv.Load()

		if cmd.Flags().Changed("verbose") {
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting verbose flag: %v\n", err)
				return
			}
			logger.SetVerbose(verbose)
		}
		version.LogStartup(programName)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd.SetVersionTemplate(version.GetVersionInfo(programName) + "\n")
	if err := rootCmd.Execute(); err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}

func main() {
	Execute()
}
