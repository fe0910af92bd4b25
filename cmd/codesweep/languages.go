package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"codesweep/internal/config"
	"codesweep/internal/registry"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List known languages and their configured servers",
	Run:   runLanguages,
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}

func runLanguages(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		cfg = config.DefaultConfig()
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LANGUAGE\tEXTENSIONS\tMARKERS\tSERVER")
	for _, lang := range registry.Known() {
		server := "(not configured)"
		if sc, ok := cfg.Servers[lang.ID]; ok {
			server = strings.TrimSpace(sc.Command + " " + strings.Join(sc.Args, " "))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			lang.ID,
			strings.Join(lang.Extensions, " "),
			strings.Join(lang.Markers, " "),
			server,
		)
	}
	w.Flush()
}
