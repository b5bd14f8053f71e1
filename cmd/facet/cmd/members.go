package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/facet/ets"
	"github.com/chazu/facet/typesfile"
)

var (
	membersFiles  []string
	membersHidden bool
)

var membersCmd = &cobra.Command{
	Use:   "members <type-name>...",
	Short: "Show consolidated members for a type hierarchy",
	Long: `Resolves the consolidated member view for the given hierarchy, most
specific type name first, against the loaded documents.

Examples:
  facet members -f types.toml Derived Base
  facet members -f base.xml -f site.toml --hidden Widget`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMembers,
}

func init() {
	rootCmd.AddCommand(membersCmd)
	membersCmd.Flags().StringSliceVarP(&membersFiles, "file", "f", nil, "Type-extension document (repeatable)")
	membersCmd.Flags().BoolVar(&membersHidden, "hidden", false, "Include hidden members")
}

func runMembers(cmd *cobra.Command, args []string) error {
	table, err := loadTable(membersFiles)
	if err != nil {
		return err
	}

	h, err := ets.NewTypeNameHierarchy(args...)
	if err != nil {
		return err
	}
	members := table.ConsolidatedMembers(h)

	fmt.Printf("%s: %d member(s)\n", strings.Join(args, " > "), members.Len())
	for _, m := range members.Members() {
		if m.Hidden() && !membersHidden {
			continue
		}
		printMember(m, "  ")
	}
	return nil
}

func printMember(m ets.Member, indent string) {
	hidden := ""
	if m.Hidden() {
		hidden = " (hidden)"
	}
	fmt.Printf("%s%-24s %s%s\n", indent, m.Name(), m.Kind(), hidden)
	if ms, ok := m.(*ets.MemberSet); ok {
		for _, nested := range ms.Members().Members() {
			printMember(nested, indent+"  ")
		}
	}
}

func loadTable(files []string) (*ets.TypeTable, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one --file is required")
	}
	table := ets.NewTypeTable()
	for _, path := range files {
		records, diags, err := typesfile.Load(path, typesfile.Options{})
		if err != nil {
			return nil, err
		}
		if err := typesfile.Apply(table, records, diags, false); err != nil {
			return nil, err
		}
	}
	return table, nil
}
