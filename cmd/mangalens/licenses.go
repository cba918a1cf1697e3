package main

import (
	"fmt"

	"github.com/okibee/mangalens/internal/licenses"
	"github.com/spf13/cobra"
)

func newLicensesCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "licenses",
		Short: "Show third-party license notices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLicenses(cmd, full)
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.Flags().BoolVar(&full, "full", false, "Print full license texts")
	return cmd
}

func runLicenses(cmd *cobra.Command, full bool) error {
	text := licenses.NoticesText()
	if full {
		text = licenses.FullText()
	}
	if text == "" {
		return fmt.Errorf("embedded license notices are empty")
	}
	_, err := cmd.OutOrStdout().Write([]byte(text))
	return err
}
