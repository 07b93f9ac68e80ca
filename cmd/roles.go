package cmd

import (
	"fmt"
	"text/tabwriter"

	"moodle-sync/core/config"
	"moodle-sync/core/records"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var rolesYAML bool

// rolesCmd prints the effective role table.
var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Print the role table used to resolve role names",
	Long: `Print the stock Moodle roles merged with the roles file (ROLES_FILE).

The YAML output can be edited and fed back as a roles file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		table, err := loadRoles(cfg)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if rolesYAML {
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(map[string][]records.Role{"roles": table.Roles()})
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSHORTNAME\tNAME\tARCHETYPE")
		for _, r := range table.Roles() {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Shortname, r.Name, r.Archetype)
		}
		return w.Flush()
	},
}

func init() {
	rolesCmd.Flags().BoolVar(&rolesYAML, "yaml", false, "Print the roles as a YAML roles file")
	RootCmd.AddCommand(rolesCmd)
}
