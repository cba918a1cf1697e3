package main

import (
	"fmt"

	"github.com/okibee/mangalens/internal/language"
	"github.com/okibee/mangalens/internal/metadata"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List supported providers, models, and languages",
		Run: func(cmd *cobra.Command, args []string) {
			printProviders(cmd)
			printModels(cmd)
			printLanguages(cmd)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)

	cmd.AddCommand(
		&cobra.Command{
			Use:   "providers",
			Short: "List vision providers",
			Run:   func(cmd *cobra.Command, args []string) { printProviders(cmd) },
		},
		&cobra.Command{
			Use:   "models",
			Short: "List known models with pricing",
			Run:   func(cmd *cobra.Command, args []string) { printModels(cmd) },
		},
		&cobra.Command{
			Use:   "languages",
			Short: "List supported source and target languages",
			Run:   func(cmd *cobra.Command, args []string) { printLanguages(cmd) },
		},
	)
	for _, sub := range cmd.Commands() {
		sub.SetUsageTemplate(subcommandUsageTemplate)
	}
	return cmd
}

func printProviders(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Providers:")
	fmt.Fprintln(out, "  gemini   Google Gemini (default)")
	fmt.Fprintln(out, "  openai   OpenAI Chat Completions")
	fmt.Fprintln(out, "  custom   Any OpenAI-compatible endpoint (requires --base-url)")
}

func printModels(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Models:")
	for _, m := range metadata.GeminiModels {
		fmt.Fprintf(out, "  %-25s %s ($%.2f in / $%.2f out per 1M tokens)\n",
			m.ID, m.Label, m.InputPerMillion, m.OutputPerMillion)
	}
	for _, m := range metadata.OpenAIModels {
		fmt.Fprintf(out, "  %-25s %s ($%.2f in / $%.2f out per 1M tokens)\n",
			m.ID, m.Label, m.InputPerMillion, m.OutputPerMillion)
	}
}

func printLanguages(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Source Languages:")
	for _, l := range language.SupportedSources() {
		fmt.Fprintf(out, "  %-25s [%s]\n", l.Name, l.ID)
	}
	fmt.Fprintln(out, "Target Languages:")
	for _, l := range language.SupportedTargets() {
		fmt.Fprintf(out, "  %-25s [%s]\n", l.Name, l.ID)
	}
}
