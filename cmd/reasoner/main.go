// Package main provides the reasoner CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/reasoner/cli"
)

var (
	// Global flags
	provider    string
	configPath  string
	workspace   string
	maxIter     int
	timeoutSecs int
	logLevel    string
	journal     string
	verbose     bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "reasoner",
		Short: "Tool-using LLM agent confined to a sandboxed workspace",
		Long: `A CLI for solving tasks with an LLM that writes scripts and data files
into a workspace directory, runs the scripts and reads their output.

The agent can only touch files inside the workspace. Every script run is
bounded by a timeout and every run is bounded by a maximum iteration count.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (groq, openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default \"workspace\")")
	rootCmd.PersistentFlags().IntVarP(&maxIter, "max-iter", "m", 0, "Maximum iterations per task (default 15)")
	rootCmd.PersistentFlags().IntVar(&timeoutSecs, "timeout", 0, "Script timeout in seconds (default 60)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&journal, "journal", "", "Run journal: a SQLite path, or \"memory\"")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show every step and token usage")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(lsCmd())
	rootCmd.AddCommand(journalCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		Provider:    provider,
		ConfigPath:  configPath,
		Workspace:   workspace,
		MaxIter:     maxIter,
		TimeoutSecs: timeoutSecs,
		LogLevel:    logLevel,
		Journal:     journal,
		Verbose:     verbose,
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [task]",
		Short: "Solve a single task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunTask(cmd.Context(), args[0], os.Stdout, options())
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Long: `Start an interactive session. Each line is solved as a new task
against the same workspace, so files written earlier stay available.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(cmd.Context(), os.Stdin, os.Stdout, options())
		},
	}
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(os.Stdout, options(), verboseTools)
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List files in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListWorkspace(os.Stdout, options())
		},
	}
}

func journalCmd() *cobra.Command {
	var runID string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recorded runs",
		Long: `Show recent runs from the run journal, or the tool calls of one run.
Requires --journal or REASONER_JOURNAL to point at a SQLite file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ShowJournal(cmd.Context(), os.Stdout, options(), runID, limit, asJSON)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Show the tool calls of this run")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}
