package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nam4dev/apy-rest2front-sub001/internal/cli/ui"
	"github.com/nam4dev/apy-rest2front-sub001/internal/drafts"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/resource"
)

// saveDraft validates doc against its schema and stores it locally
func (a *app) saveDraft(cmd *cobra.Command, name string, doc map[string]any) error {
	res, err := a.lookup(name)
	if err != nil {
		return err
	}
	reg, err := a.schemas()
	if err != nil {
		return err
	}
	r, err := resource.New(res, nil, resource.Options{Schemas: reg, Logger: a.logger})
	if err != nil {
		return err
	}
	if err := apply(r, doc); err != nil {
		return err
	}
	payload, err := r.CleanedData()
	if err != nil {
		return err
	}

	store, err := a.draftStore()
	if err != nil {
		return err
	}
	d, err := store.Save(cmd.Context(), name, payload)
	if err != nil {
		return err
	}
	ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("saved draft %s of %s", d.ID, name), a.noColor)
	return nil
}

func newDraftsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Manage documents saved locally with create --draft",
	}
	cmd.AddCommand(newDraftsListCommand(a))
	cmd.AddCommand(newDraftsPushCommand(a))
	cmd.AddCommand(newDraftsDropCommand(a))
	return cmd
}

func newDraftsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:               "list [resource]",
		Short:             "List drafts, optionally of one resource",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeResources(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.draftStore()
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			list, err := store.List(cmd.Context(), name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, ui.Info("no drafts", a.noColor))
				return nil
			}
			table := ui.NewTable(out, []string{"ID", "RESOURCE", "FIELDS", "UPDATED"}, &ui.TableOptions{NoColor: a.noColor})
			for _, d := range list {
				table.AddRow(d.ID, d.Resource, strconv.Itoa(len(d.Payload)), d.UpdatedAt.Local().Format(time.DateTime))
			}
			table.Render()
			return nil
		},
	}
}

func newDraftsPushCommand(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "push [draft-id...]",
		Short: "Create drafts on the backend and remove them locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return fmt.Errorf("pass draft ids or --all")
			}
			store, err := a.draftStore()
			if err != nil {
				return err
			}

			var pending []*drafts.Draft
			if all {
				if pending, err = store.List(cmd.Context(), ""); err != nil {
					return err
				}
			} else {
				for _, id := range args {
					d, err := store.Get(cmd.Context(), id)
					if err != nil {
						return err
					}
					pending = append(pending, d)
				}
			}

			out := cmd.OutOrStdout()
			var errs []error
			for _, d := range pending {
				id, err := a.push(cmd, d)
				if err != nil {
					a.logger.Warn("draft not pushed", zap.String("draft", d.ID), zap.Error(err))
					errs = append(errs, fmt.Errorf("draft %s: %w", d.ID, err))
					continue
				}
				if err := store.Delete(cmd.Context(), d.ID); err != nil {
					errs = append(errs, err)
					continue
				}
				ui.WriteSuccess(out, fmt.Sprintf("pushed draft %s as %s %s", d.ID, d.Resource, id), a.noColor)
			}
			if len(errs) > 0 {
				return &resource.BatchError{Total: len(pending), Errors: errs}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "push every draft")
	return cmd
}

// push creates the document of d and returns its backend ID
func (a *app) push(cmd *cobra.Command, d *drafts.Draft) (string, error) {
	res, err := a.lookup(d.Resource)
	if err != nil {
		return "", err
	}
	opts, err := a.resourceOptions()
	if err != nil {
		return "", err
	}
	r, err := resource.New(res, nil, opts)
	if err != nil {
		return "", err
	}
	if err := apply(r, d.Payload); err != nil {
		return "", err
	}
	if _, err := r.Create(cmd.Context()); err != nil {
		return "", err
	}
	if r.ID() == "" {
		return "", errors.New("backend returned no id")
	}
	return r.ID(), nil
}

func newDraftsDropCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <draft-id>...",
		Short: "Delete drafts without sending them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.draftStore()
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := store.Delete(cmd.Context(), id); err != nil {
					return err
				}
				ui.WriteSuccess(cmd.OutOrStdout(), "dropped draft "+id, a.noColor)
			}
			return nil
		},
	}
}
