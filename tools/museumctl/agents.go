package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tccoin/museum-agent/pkg/config"
)

// Tabwriter settings
const (
	tabMinWidth = 0
	tabWidth    = 0
	tabPadding  = 2
)

var agentsCmd = &cobra.Command{
	Use:   "agents [set]",
	Short: "List agent sets, or the agents and handoffs of one set",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		out := cmd.OutOrStdout()
		if len(args) == 0 && file == "" {
			return listAgentSets(out)
		}
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		set, err := config.ResolveAgentSet(name, file)
		if err != nil {
			return err
		}
		return describeAgentSet(out, set)
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsCmd.Flags().StringP("file", "f", "", "Agent set manifest file")
}

func listAgentSets(out io.Writer) error {
	w := tabwriter.NewWriter(out, tabMinWidth, tabWidth, tabPadding, ' ', 0)
	fmt.Fprintln(w, "NAME\tAGENTS\tDEFAULT\tDESCRIPTION")
	for _, name := range config.BuiltinAgentSetNames() {
		set, err := config.BuiltinAgentSet(name)
		if err != nil {
			return err
		}
		marker := ""
		if name == config.DefaultAgentSetName {
			marker = " (default)"
		}
		fmt.Fprintf(w, "%s%s\t%d\t%s\t%s\n", name, marker, len(set.Graph.Names()),
			set.Graph.Default().Name, set.Description)
	}
	return w.Flush()
}

func describeAgentSet(out io.Writer, set *config.AgentSet) error {
	fmt.Fprintf(out, "%s (%s)\n", set.Name, set.Source)
	if set.Description != "" {
		fmt.Fprintf(out, "%s\n", set.Description)
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, tabMinWidth, tabWidth, tabPadding, ' ', 0)
	fmt.Fprintln(w, "AGENT\tVOICE\tHANDOFFS\tTOOLS")
	def := set.Graph.Default().Name
	for _, name := range set.Graph.Names() {
		agent, err := set.Graph.Agent(name)
		if err != nil {
			return err
		}
		label := name
		if name == def {
			label += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", label, orDash(agent.Voice),
			orDash(strings.Join(set.Graph.Neighbors(name), ", ")),
			orDash(toolNames(set, name)))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, warning := range set.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}
	return nil
}

func toolNames(set *config.AgentSet, agent string) string {
	defs := set.Graph.Tools(agent)
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	return strings.Join(names, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
