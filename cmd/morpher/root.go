// Command morpher is the engine's CLI: collect, fuzz, and version.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overridable at link time via ldflags.
var Version = "dev"

var (
	configPath string
	verbose    bool
)

// NewRootCmd assembles the morpher command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "morpher",
		Short:         "Mutational API-fuzzing engine for native shared libraries",
		Version:       fmt.Sprintf("morpher v%s", Version),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	pflags := root.PersistentFlags()
	pflags.StringVar(&configPath, "config", "morpher.toml", "path to the TOML configuration file")
	pflags.BoolVarP(&verbose, "verbose", "v", false, "raise the logger's level to debug")

	root.AddCommand(newCollectCmd())
	root.AddCommand(newFuzzCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the morpher command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "morpher v%s\n", Version)
			return nil
		},
	}
}
