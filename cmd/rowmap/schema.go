package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/artpar/rowmap/core/convention"
	"github.com/artpar/rowmap/core/schema"
)

func newSchemaCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [entity]",
		Short: "Show derived tables and columns",
		Long: `Show the storage shape derived from the entity declarations.

Without arguments every entity is listed with its table. With an entity name
each column is shown with its type. Storage is not touched.

Examples:
  rowmap schema
  rowmap schema Post --entities ./entities`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, err := flags.declarations(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 0 {
				fmt.Fprintln(w, "ENTITY\tTABLE\tFIELDS\tREFERENCES")
				for _, decl := range reg.List() {
					d, err := convention.Derive(decl)
					if err != nil {
						return err
					}
					var refs []string
					for _, r := range d.References() {
						refs = append(refs, r.Name+"->"+r.Ref)
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.Name, d.Table, len(d.Fields), dash(strings.Join(refs, ",")))
				}
				return nil
			}

			decl, ok := reg.Lookup(args[0])
			if !ok {
				return &schema.Error{Entity: args[0], Err: schema.ErrUnknownEntity}
			}
			d, err := convention.Derive(decl)
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "%s (table %s)\n\n", d.Name, d.Table)
			fmt.Fprintln(w, "FIELD\tCOLUMN\tTYPE\tSQL\tNULLABLE\tREFERENCE\tINDEX")
			for _, f := range d.Fields {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%t\n",
					f.Name, f.Column, f.Type, f.SQLType, f.Nullable, dash(f.Ref), f.Index)
			}
			return nil
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
