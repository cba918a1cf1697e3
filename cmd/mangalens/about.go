package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAboutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "about",
		Short: "Show a short description and link",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "mangalens — Manga page analyzer for language learners")
			fmt.Fprintln(out, "https://github.com/okibee/mangalens")
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
