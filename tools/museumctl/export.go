package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tccoin/museum-agent/runtime/events"
	"github.com/tccoin/museum-agent/runtime/recording"
)

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a logged session to a self-contained recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("event-log")
		outPath, _ := cmd.Flags().GetString("out")
		format, _ := cmd.Flags().GetString("format")
		agentSet, _ := cmd.Flags().GetString("agent-set")

		log, err := events.NewFileEventLog(dir)
		if err != nil {
			return err
		}
		defer log.Close()

		rec, err := recording.Export(cmd.Context(), log, args[0], recording.ExportOptions{AgentSet: agentSet})
		if err != nil {
			return err
		}
		if outPath == "" {
			outPath = filepath.Join(dir, args[0]+".recording."+format)
		}
		if err := rec.SaveTo(outPath, recording.Format(format)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", rec, outPath)
		return nil
	},
}

var transcriptCmd = &cobra.Command{
	Use:   "transcript <recording>",
	Short: "Print the final transcript of a recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := recording.Load(args[0])
		if err != nil {
			return err
		}
		items, err := rec.Transcript()
		if err != nil {
			return err
		}
		p := newTranscriptPrinter(cmd.OutOrStdout())
		for _, item := range items {
			p.print(item)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, transcriptCmd)
	exportCmd.Flags().String("event-log", "events", "Event log directory")
	exportCmd.Flags().StringP("out", "o", "", "Output file; defaults next to the event log")
	exportCmd.Flags().String("format", string(recording.FormatJSON), "json or jsonl")
	exportCmd.Flags().String("agent-set", "", "Agent set name to record in the metadata")
}
