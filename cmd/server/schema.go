package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"quorum/internal/quota"
	id "quorum/pkg/domain"
)

// schemaCommand validates a quota schema file and prints the effective
// document, including the per-state totals of overridden states.
func schemaCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Validate and print the quota schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := quota.Load(path)
			if err != nil {
				return err
			}

			doc := quota.Document{Categories: schema.Categories()}
			for _, state := range schema.OverriddenStates() {
				if doc.Overrides == nil {
					doc.Overrides = make(map[id.StateCode]map[quota.Category]int)
				}
				limits := make(map[quota.Category]int)
				for _, c := range schema.Categories() {
					if l := schema.LimitFor(state, c.Name); l != c.Limit {
						limits[c.Name] = l
					}
				}
				doc.Overrides[state] = limits
			}
			out, err := yaml.Marshal(doc)
			if err != nil {
				return fmt.Errorf("encode schema: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprint(w, string(out))
			fmt.Fprintf(w, "# default roster size: %d\n", schema.TotalFor(""))
			for _, state := range schema.OverriddenStates() {
				fmt.Fprintf(w, "# %s (%s): %d\n", state, state.Name(), schema.TotalFor(state))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "quota schema YAML (default: built-in schema)")
	return cmd
}
