package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"codesweep/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration into the repository",
	Long: `Write the default configuration to .codesweep/config.json so server
commands, keyword lists, and timeouts can be adjusted per repository.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	repoPath := "."
	if len(args) == 1 {
		repoPath = args[0]
	}

	cfgPath := filepath.Join(repoPath, ".codesweep", "config.json")
	if _, err := os.Stat(cfgPath); err == nil && !initForce {
		fmt.Fprintln(os.Stderr, "Error: configuration already exists (use --force to overwrite)")
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(repoPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Wrote .codesweep/config.json")
}
