package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	apihttp "github.com/artpar/rowmap/adapters/http"
	"github.com/artpar/rowmap/core/formatter"
)

// whereFlags select rows with an opaque SQL predicate and its arguments.
type whereFlags struct {
	where string
	args  []string
}

func (w *whereFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&w.where, "where", "", `SQL predicate over columns, e.g. "title LIKE ?"`)
	cmd.Flags().StringArrayVar(&w.args, "arg", nil, "argument for a ? placeholder in --where (repeatable)")
}

func (w *whereFlags) values() []any {
	out := make([]any, len(w.args))
	for i, a := range w.args {
		out[i] = a
	}
	return out
}

// outputFlags choose how records are printed.
type outputFlags struct {
	format  string
	columns []string
}

func (o *outputFlags) register(cmd *cobra.Command, def string) {
	names := strings.Join(formatter.Builtin().List(), ", ")
	cmd.Flags().StringVarP(&o.format, "output", "o", def, "output format: "+names)
	cmd.Flags().StringSliceVar(&o.columns, "columns", nil, "fields to print (default: all)")
}

func (o *outputFlags) formatter() (formatter.Formatter, formatter.Options, error) {
	f, err := formatter.Builtin().Get(o.format)
	return f, formatter.Options{Columns: o.columns}, err
}

func newCountCmd(flags *globalFlags) *cobra.Command {
	var sel whereFlags

	cmd := &cobra.Command{
		Use:   "count <entity>",
		Short: "Count stored records",
		Example: `  rowmap count Post
  rowmap count Post --where "title LIKE ?" --arg "%go%"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer c.Teardown()

			n, err := c.Engine().CountWhere(cmd.Context(), args[0], sel.where, sel.values()...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	sel.register(cmd)
	return cmd
}

func newListCmd(flags *globalFlags) *cobra.Command {
	var (
		sel   whereFlags
		out   outputFlags
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "Print stored records",
		Long: `Print stored records in identity order. References are loaded and
printed inline. The default output is one JSON object per line.`,
		Example: `  rowmap list Post
  rowmap list Post --limit 10 -o table
  rowmap list Post --where "author = ?" --arg 3 --columns id,title`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, opts, err := out.formatter()
			if err != nil {
				return err
			}

			c, err := flags.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer c.Teardown()

			ctx := cmd.Context()
			eng := c.Engine()
			d, err := eng.Describe(ctx, args[0])
			if err != nil {
				return err
			}

			cur := eng.ListAll(ctx, args[0])
			if sel.where != "" {
				cur = eng.Find(ctx, args[0], sel.where, sel.values()...)
			}
			if limit > 0 {
				cur.Limit(limit)
			}

			var records []map[string]any
			for e, err := range cur.All() {
				if err != nil {
					return err
				}
				records = append(records, apihttp.Encode(e))
			}
			return f.FormatList(cmd.OutOrStdout(), *d, records, opts)
		},
	}
	sel.register(cmd)
	out.register(cmd, "jsonl")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of records (0 = all)")
	return cmd
}

func newGetCmd(flags *globalFlags) *cobra.Command {
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "get <entity> <id>",
		Short: "Print one record",
		Example: `  rowmap get Post 42
  rowmap get Post 42 -o yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			f, opts, err := out.formatter()
			if err != nil {
				return err
			}

			c, err := flags.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer c.Teardown()

			ctx := cmd.Context()
			e, found, err := c.Engine().FindByID(ctx, args[0], id)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%s #%d not found", args[0], id)
			}

			d, err := c.Engine().Describe(ctx, args[0])
			if err != nil {
				return err
			}
			return f.FormatRecord(cmd.OutOrStdout(), *d, apihttp.Encode(e), opts)
		},
	}
	out.register(cmd, "json")
	return cmd
}

func newDeleteCmd(flags *globalFlags) *cobra.Command {
	var (
		sel whereFlags
		all bool
	)

	cmd := &cobra.Command{
		Use:   "delete <entity> [id]",
		Short: "Delete stored records",
		Long: `Delete one record by identity, the records matching --where, or every
record with --all. Dependents that reference a deleted record are left in
place and fail to load until they are updated.`,
		Example: `  rowmap delete Post 42
  rowmap delete Post --where "title = ?" --arg draft
  rowmap delete Post --all`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity := args[0]
			var id int64
			if len(args) == 2 {
				var err error
				if id, err = parseID(args[1]); err != nil {
					return err
				}
				if sel.where != "" || all {
					return errors.New("an id cannot be combined with --where or --all")
				}
			} else if sel.where == "" && !all {
				return errors.New("give an id, --where or --all")
			}

			c, err := flags.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer c.Teardown()

			eng := c.Engine()
			if len(args) == 2 {
				if err := eng.DeleteByID(cmd.Context(), entity, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s #%d\n", entity, id)
				return nil
			}

			n, err := eng.DeleteAll(cmd.Context(), entity, sel.where, sel.values()...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d %s records\n", n, entity)
			return nil
		},
	}
	sel.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "delete every record")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}
