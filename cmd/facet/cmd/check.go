package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/facet/ets"
	"github.com/chazu/facet/typesfile"
)

var checkStrict bool

var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Validate type-extension documents",
	Long: `Loads one or more type-extension documents into a fresh table and
reports every diagnostic. With --strict any diagnostic fails the check,
mirroring how a shared table treats startup documents.

Examples:
  facet check types.toml
  facet check --strict base.xml site.toml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "Treat any diagnostic as an error")
}

func runCheck(cmd *cobra.Command, args []string) error {
	table := ets.NewTypeTable()
	failed := false

	for _, path := range args {
		records, diags, err := typesfile.Load(path, typesfile.Options{})
		if err != nil {
			return err
		}
		err = typesfile.Apply(table, records, diags, checkStrict)
		var le *ets.LoadError
		if errors.As(err, &le) {
			for _, p := range le.Problems {
				fmt.Printf("  %s\n", p)
			}
			failed = true
			continue
		}
		if err != nil {
			return err
		}
		for _, p := range diags {
			fmt.Printf("  %s\n", p)
		}
		fmt.Printf("%s: %d type(s) loaded, %d diagnostic(s)\n", path, len(records), len(diags))
	}

	if failed {
		return fmt.Errorf("check failed")
	}
	fmt.Printf("table holds %d type(s)\n", len(table.TypeNames()))
	return nil
}
