package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nam4dev/apy-rest2front-sub001/internal/cli/ui"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/query"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/resource"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func newFetchCommand(a *app) *cobra.Command {
	var (
		output     string
		columns    []string
		quiet      bool
		where      []string
		sortKeys   []string
		maxResults int
	)

	cmd := &cobra.Command{
		Use:   "fetch <resource>",
		Short: "Fetch every document of a resource",
		Long: `Fetch every page of a resource collection and print the documents.

Conditions take the form field<op>value with one of = != > >= < <=.
Progress goes to stderr so that --output json can be piped.`,
		Example: `  apy fetch tasks --where done=false --where "points>=3" --sort -points`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeResources(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != outputTable && output != outputJSON {
				return fmt.Errorf("unknown output %q, expected %s or %s", output, outputTable, outputJSON)
			}
			res, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			opts, err := a.resourceOptions()
			if err != nil {
				return err
			}

			q, err := buildQuery(res, where, sortKeys, maxResults)
			if err != nil {
				return err
			}
			c := resource.NewCollection(res, opts)
			c.SetQuery(q)
			fetch := func(report func(int)) error { return c.Fetch(cmd.Context(), report) }
			if quiet {
				err = fetch(nil)
			} else {
				err = ui.WithProgress(cmd.ErrOrStderr(), "fetch "+res.Name, a.noColor, fetch)
			}
			if err != nil {
				return err
			}

			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), c)
			}
			writeTable(cmd.OutOrStdout(), c, columns, a.noColor)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "fields to show (default: every schema field)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "filter condition, repeatable")
	cmd.Flags().StringSliceVar(&sortKeys, "sort", nil, "sort keys, prefix with - to sort descending")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "page size requested from the backend")
	return cmd
}

// buildQuery turns the fetch flags into listing parameters, nil when there
// are none
func buildQuery(res *schema.Resource, where, sortKeys []string, maxResults int) (*query.Builder, error) {
	b := query.NewBuilder(res)
	for _, expr := range where {
		c, err := query.ParseCondition(expr)
		if err != nil {
			return nil, err
		}
		b.WhereCondition(c)
	}
	for _, key := range sortKeys {
		b.OrderBy(key)
	}
	b.Limit(maxResults)
	if b.Empty() {
		return nil, nil
	}
	if _, err := b.Values(); err != nil {
		return nil, err
	}
	return b, nil
}

// collectionColumns lists the schema fields, or for schemaless resources
// every key seen in the documents
func collectionColumns(c *resource.Collection) []string {
	if fields := c.Schema().Fields; len(fields) > 0 {
		cols := make([]string, len(fields))
		for i, f := range fields {
			cols[i] = f.Name
		}
		return cols
	}
	seen := map[string]bool{}
	var cols []string
	for _, r := range c.Resources() {
		for key := range r.Value() {
			if !seen[key] {
				seen[key] = true
				cols = append(cols, key)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func writeTable(w io.Writer, c *resource.Collection, columns []string, noColor bool) {
	if len(columns) == 0 {
		columns = collectionColumns(c)
	}
	headers := append([]string{resource.KeyID}, columns...)
	table := ui.NewTable(w, headers, &ui.TableOptions{NoColor: noColor})
	for _, r := range c.Resources() {
		row := []string{r.ID()}
		for _, col := range columns {
			cell := ""
			if f, ok := r.Field(col); ok {
				cell = formatValue(f.Value())
			}
			row = append(row, cell)
		}
		table.AddRow(row...)
	}
	table.Render()
	fmt.Fprintf(w, "\n%d %s\n", c.Len(), c.Name())
}

func writeJSON(w io.Writer, c *resource.Collection) error {
	docs := make([]map[string]any, 0, c.Len())
	for _, r := range c.Resources() {
		doc := r.Value()
		meta := r.Meta()
		doc[resource.KeyID] = meta.ID
		if meta.ETag != "" {
			doc[resource.KeyETag] = meta.ETag
		}
		docs = append(docs, doc)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}
