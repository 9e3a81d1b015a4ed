package commands

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nam4dev/apy-rest2front-sub001/internal/cli/ui"
	"github.com/nam4dev/apy-rest2front-sub001/internal/drafts"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/field"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/resource"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
	"github.com/nam4dev/apy-rest2front-sub001/internal/transport"
)

func writeError(w io.Writer, err error, a *app) {
	var names []string
	if a.registry != nil {
		names = a.registry.Names()
	}
	opts := describe(err, names)
	opts.NoColor = a.noColor
	ui.WriteError(w, opts)
}

// describe turns err into a user facing message
func describe(err error, resources []string) ui.ErrorOptions {
	var (
		unknown *schema.UnknownTypeError
		remote  *transport.RemoteError
		invalid *field.ValidationError
		batch   *resource.BatchError
		missing *resource.MissingDependencyError
	)

	switch {
	case errors.As(err, &batch):
		details := make([]string, len(batch.Errors))
		for i, e := range batch.Errors {
			details[i] = e.Error()
		}
		return ui.ErrorOptions{
			Context: "save failed",
			Problem: fmt.Sprintf("%d of %d resources failed", len(batch.Errors), batch.Total),
			Details: details,
		}

	case errors.As(err, &unknown) && unknown.Kind == "schema":
		return ui.ErrorOptions{
			Context:      "unknown resource",
			Problem:      unknown.Name,
			Suggestions:  ui.FindSimilar(unknown.Name, resources, nil),
			HelpCommands: []string{"See all resources: apy schemas"},
		}

	case errors.As(err, &remote):
		opts := ui.ErrorOptions{
			Context: "backend error",
			Problem: remote.Title,
			Details: remote.Messages,
		}
		switch remote.StatusCode {
		case http.StatusPreconditionFailed:
			opts.HelpCommands = []string{"The document changed since it was read: retry to apply the edit on the current version"}
		case http.StatusUnauthorized, http.StatusForbidden:
			opts.HelpCommands = []string{"Set credentials: api_key, or username and password, in apy.yaml or APY_API_KEY"}
		}
		return opts

	case errors.As(err, &invalid):
		opts := ui.ErrorOptions{Context: "invalid document", Problem: err.Error()}
		if len(invalid.Messages) > 0 {
			opts.Problem = "validation failed"
			opts.Details = invalid.Messages
		}
		return opts

	case errors.As(err, &missing):
		return ui.ErrorOptions{
			Context:      "configuration error",
			Problem:      err.Error(),
			HelpCommands: []string{"Set the backend: --endpoint URL, endpoint in apy.yaml or APY_ENDPOINT"},
		}

	case drafts.IsNotFound(err):
		return ui.ErrorOptions{
			Context:      "unknown draft",
			Problem:      err.Error(),
			HelpCommands: []string{"List drafts: apy drafts list"},
		}

	default:
		return ui.ErrorOptions{Problem: err.Error()}
	}
}
