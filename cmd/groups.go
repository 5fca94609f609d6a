package cmd

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"harness/internal/groups"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List the registered test groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := groups.Default()

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Group", "Tests", "Depends On", "Requires"})

		for _, name := range reg.Names() {
			g, _ := reg.Get(name)
			var reqs []string
			if g.Requires.Auth {
				reqs = append(reqs, "auth")
			}
			if g.Requires.Project {
				reqs = append(reqs, "project")
			}
			if g.Requires.Collection {
				reqs = append(reqs, "collection")
			}
			t.AppendRow(table.Row{
				g.Name,
				len(g.Tests),
				strings.Join(g.Deps, ", "),
				strings.Join(reqs, ", "),
			})
		}
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(groupsCmd)
}
