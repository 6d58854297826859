package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var servicesCmd = &cobra.Command{
	Use:     "services",
	Aliases: []string{"svc"},
	Short:   "Manage critical services",
}

var servicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List critical services by namespace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newClient(cmd).Services(cmd.Context())
		if err != nil {
			return err
		}
		return printOutput(cmd, list)
	},
}

var servicesStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List critical service status and balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newClient(cmd).ServiceStatus(cmd.Context())
		if err != nil {
			return err
		}
		return printOutput(cmd, list)
	},
}

var servicesDescribeCmd = &cobra.Command{
	Use:   "describe NAME",
	Short: "Show configured and running instances of a critical service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := newClient(cmd).Service(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printOutput(cmd, desc)
	},
}

var servicesUpdateCmd = &cobra.Command{
	Use:   "update -f FILE",
	Short: "Add critical services from a file",
	Long: `Add critical services from a JSON file of the form

  {"critical-services": {"NAME": {"namespace": "NS", "type": "Deployment"}}}

Services that are already registered are left untouched.

Examples:
  # Add services
  rackmon services update -f critical-services.json

  # Show what would be added without saving
  rackmon services update -f critical-services.json --dry-run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filename, _ := cmd.Flags().GetString("file")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		res, err := newClient(cmd).UpdateServices(cmd.Context(), string(data), dryRun)
		if err != nil {
			return err
		}
		return printOutput(cmd, res)
	},
}

func init() {
	servicesCmd.AddCommand(servicesListCmd)
	servicesCmd.AddCommand(servicesStatusCmd)
	servicesCmd.AddCommand(servicesDescribeCmd)
	servicesCmd.AddCommand(servicesUpdateCmd)

	servicesUpdateCmd.Flags().StringP("file", "f", "", "JSON file with critical services (required)")
	servicesUpdateCmd.Flags().Bool("dry-run", false, "Merge and report without saving")
	_ = servicesUpdateCmd.MarkFlagRequired("file")
}
