package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newKindsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List wizard kinds and their discriminator values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := a.catalog()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tFIELD\tVALUES")
			for _, kind := range catalog.Kinds() {
				reg, _ := catalog.Registry(kind)
				var values []string
				for _, value := range reg.Discriminators() {
					entry := string(value)
					if value == reg.Default() {
						entry += "*"
					}
					values = append(values, entry)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", kind, reg.DiscriminatorField(), strings.Join(values, ", "))
			}
			return w.Flush()
		},
	}
}
