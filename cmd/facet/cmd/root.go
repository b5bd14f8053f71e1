package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var verbosity int

var rootCmd = &cobra.Command{
	Use:   "facet",
	Short: "Inspect and exercise extended type configuration",
	Long: `facet works with declarative type-extension documents: files that
attach extra members, serialization settings, converters and adapters
to type names.

Commands:
  check      - validate type-extension documents
  members    - show the consolidated members for a type hierarchy
  serialize  - round a sample value through the serializer`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		commonlog.Configure(verbosity, nil)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbose", "v", 0, "Log verbosity")
}
