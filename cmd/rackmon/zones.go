package main

import (
	"github.com/spf13/cobra"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Inspect rack zones",
}

var zonesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List zones with their management nodes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := newClient(cmd).Zones(cmd.Context())
		if err != nil {
			return err
		}
		return printOutput(cmd, summary)
	},
}

var zonesDescribeCmd = &cobra.Command{
	Use:   "describe ZONE",
	Short: "Show node status and OSDs of one zone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := newClient(cmd).Zone(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printOutput(cmd, desc)
	},
}

func init() {
	zonesCmd.AddCommand(zonesListCmd)
	zonesCmd.AddCommand(zonesDescribeCmd)
}
