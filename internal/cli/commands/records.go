package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nam4dev/apy-rest2front-sub001/internal/cli/ui"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/resource"
)

// load reads one persisted document from the backend
func (a *app) load(cmd *cobra.Command, name, id string) (*resource.Resource, error) {
	res, err := a.lookup(name)
	if err != nil {
		return nil, err
	}
	opts, err := a.resourceOptions()
	if err != nil {
		return nil, err
	}
	r, err := resource.New(res, map[string]any{resource.KeyID: id}, opts)
	if err != nil {
		return nil, err
	}
	if err := r.Reload(cmd.Context()); err != nil {
		return nil, err
	}
	return r, nil
}

func writeResource(w io.Writer, r *resource.Resource, noColor bool) {
	ui.Header(w, r.Title(), noColor)
	kv := ui.NewKeyValueTable(w, noColor)
	meta := r.Meta()
	kv.AddRow(resource.KeyID, meta.ID)
	if meta.ETag != "" {
		kv.AddRow(resource.KeyETag, meta.ETag)
	}
	if !meta.Updated.IsZero() {
		kv.AddRow(resource.KeyUpdated, formatValue(meta.Updated))
	}
	for _, f := range r.Children() {
		kv.AddRow(f.Name(), formatValue(f.Value()))
	}
	kv.Render()
}

func newGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:               "get <resource> <id>",
		Short:             "Show one document",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeResources(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.load(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			writeResource(cmd.OutOrStdout(), r, a.noColor)
			return nil
		},
	}
}

func newCreateCommand(a *app) *cobra.Command {
	var (
		data  string
		set   []string
		draft bool
	)

	cmd := &cobra.Command{
		Use:   "create <resource>",
		Short: "Create a document, or save it as a local draft",
		Example: `  apy create tasks --data '{"title": "write docs"}'
  apy create tasks --set title="write docs" --set points=3 --draft`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeResources(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := map[string]any{}
			if data != "" {
				parsed, err := parseDocument(data)
				if err != nil {
					return err
				}
				doc = parsed
			}
			assigned, err := parseAssignments(set)
			if err != nil {
				return err
			}
			for k, v := range assigned {
				doc[k] = v
			}
			if len(doc) == 0 {
				return fmt.Errorf("nothing to create: pass --data or --set")
			}

			res, err := a.lookup(args[0])
			if err != nil {
				return err
			}

			if draft {
				return a.saveDraft(cmd, res.Name, doc)
			}

			opts, err := a.resourceOptions()
			if err != nil {
				return err
			}
			r, err := resource.New(res, nil, opts)
			if err != nil {
				return err
			}
			if err := apply(r, doc); err != nil {
				return err
			}
			if _, err := r.Create(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("document created", zap.String("resource", res.Name), zap.String("id", r.ID()))
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("created %s %s", res.Name, r.ID()), a.noColor)
			return nil
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "document as a JSON object")
	cmd.Flags().StringArrayVar(&set, "set", nil, "field assignment key=value, repeatable")
	cmd.Flags().BoolVar(&draft, "draft", false, "save locally instead of sending to the backend")
	return cmd
}

func newUpdateCommand(a *app) *cobra.Command {
	var set []string

	cmd := &cobra.Command{
		Use:               "update <resource> <id>",
		Short:             "Patch fields of a document",
		Example:           `  apy update tasks 5f1c --set done=true --set title="ship it"`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeResources(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := parseAssignments(set)
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				return fmt.Errorf("nothing to update: pass --set key=value")
			}

			r, err := a.load(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			if err := apply(r, changes); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			diff := r.Changes()
			if len(diff) == 0 {
				fmt.Fprintln(out, ui.Info("no change", a.noColor))
				return nil
			}
			if _, err := r.Update(cmd.Context()); err != nil {
				return err
			}

			table := ui.NewTable(out, []string{"FIELD", "BEFORE", "AFTER"}, &ui.TableOptions{NoColor: a.noColor})
			for _, c := range diff {
				table.AddRow(c.Field, formatValue(c.OldValue), formatValue(c.NewValue))
			}
			table.Render()
			ui.WriteSuccess(out, fmt.Sprintf("updated %s %s", r.Name(), r.ID()), a.noColor)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&set, "set", nil, "field assignment key=value, repeatable")
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:               "delete <resource> <id>",
		Short:             "Delete a document",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeResources(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.load(cmd, args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !yes {
				ok, err := a.confirm(fmt.Sprintf("Delete %s %q?", r.Name(), r.Title()))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, ui.Info("aborted", a.noColor))
					return nil
				}
			}

			if _, err := r.Delete(cmd.Context()); err != nil {
				return err
			}
			ui.WriteSuccess(out, fmt.Sprintf("deleted %s %s", r.Name(), r.ID()), a.noColor)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
