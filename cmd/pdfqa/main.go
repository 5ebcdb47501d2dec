// Package main implements the pdfqa CLI: answer questions about a PDF from
// the command line or over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath string
	envFile    string
	variant    string
	noNotify   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "pdfqa",
		Short: "Answer questions about a PDF with hybrid retrieval",
		Long:  `pdfqa answers natural-language questions about a single PDF document.

Text is chunked, indexed in a dense vector store and a BM25 index, fused,
compressed and handed to a language model. Answers are cached by question and
optionally posted to Slack.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&opts.envFile, "env-file", "env/.env", "dotenv file loaded before configuration")
	flags.StringVar(&opts.variant, "variant", "", "retrieval variant: hybrid or simple (overrides config)")
	flags.BoolVar(&opts.noNotify, "no-notify", false, "do not post results to Slack")

	root.AddCommand(newAskCmd(opts), newServeCmd(opts), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "pdfqa by Fyrsmith Labs")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
