package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nam4dev/apy-rest2front-sub001/internal/cli/ui"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
)

func newSchemasCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:               "schemas [resource]",
		Short:             "List resource schemas or show the fields of one",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeResources(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.schemas()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				table := ui.NewTable(out, []string{"RESOURCE", "FIELDS", "ITEM TITLE"}, &ui.TableOptions{NoColor: a.noColor})
				for _, name := range reg.Names() {
					res, _ := reg.Get(name)
					table.AddRow(name, strconv.Itoa(len(res.Fields)), res.ItemTitle)
				}
				table.Render()
				return nil
			}

			res, err := reg.Get(args[0])
			if err != nil {
				return err
			}
			ui.Header(out, res.Name, a.noColor)
			table := ui.NewTable(out, []string{"FIELD", "TYPE", "REQUIRED", "DEFAULT"}, &ui.TableOptions{NoColor: a.noColor})
			for _, f := range res.Fields {
				table.AddRow(f.Name, typeLabel(f), yesNo(f.Required), defaultLabel(f))
			}
			table.Render()
			return nil
		},
	}
}

// typeLabel renders the tag with its item type or relation, e.g.
// "list<string>" or "objectid -> users"
func typeLabel(f *schema.Field) string {
	label := f.Type.String()
	if f.Type == schema.TypeList && f.Items != nil {
		label += "<" + typeLabel(f.Items) + ">"
	}
	if f.Relation != nil {
		label += " -> " + f.Relation.Resource
		if f.IsEmbedded() {
			label += " (embedded)"
		}
	}
	if len(f.Allowed) > 0 {
		vals := make([]string, len(f.Allowed))
		for i, v := range f.Allowed {
			vals[i] = fmt.Sprint(v)
		}
		label += " [" + strings.Join(vals, "|") + "]"
	}
	return label
}

func defaultLabel(f *schema.Field) string {
	if f.Default == nil {
		return ""
	}
	return formatValue(f.Default)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
