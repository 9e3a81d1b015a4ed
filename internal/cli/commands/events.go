package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nam4dev/apy-rest2front-sub001/internal/mockapi"
)

func newEventsCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "events [resource]",
		Short: "Follow the change feed of a mock backend",
		Long: `Print changes made on a backend started with "apy mock" as they happen,
optionally only those of one resource. Press Ctrl+C to stop.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeResources(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resource string
			if len(args) == 1 {
				if _, err := a.lookup(args[0]); err != nil {
					return err
				}
				resource = args[0]
			}
			if output != "text" && output != "json" {
				return fmt.Errorf("unknown output format %q: use text or json", output)
			}

			rawURL, err := mockapi.EventsURL(a.cfg.Endpoint, resource)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			return mockapi.Subscribe(ctx, rawURL, a.authHeader(), func(e mockapi.Event) {
				if output == "json" {
					_ = enc.Encode(e)
					return
				}
				fmt.Fprintln(out, formatEvent(e, a.noColor))
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

// authHeader carries the configured credentials to requests made outside
// the executor
func (a *app) authHeader() http.Header {
	header := http.Header{}
	switch {
	case a.cfg.APIKey != "":
		header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	case a.cfg.Username != "":
		req := &http.Request{Header: header}
		req.SetBasicAuth(a.cfg.Username, a.cfg.Password)
	}
	return header
}

func formatEvent(e mockapi.Event, noColor bool) string {
	stamp := time.Unix(e.Timestamp, 0).Format(time.TimeOnly)

	c := color.New(color.FgCyan)
	switch e.Type {
	case mockapi.EventInserted:
		c = color.New(color.FgGreen)
	case mockapi.EventDeleted, mockapi.EventDropped:
		c = color.New(color.FgRed)
	}
	if noColor {
		c.DisableColor()
	}

	line := fmt.Sprintf("%s %s", stamp, c.Sprintf("%-8s", e.Type))
	if e.Resource != "" {
		line += " " + e.Resource
	}
	if e.ID != "" {
		line += " " + e.ID
	}
	return line
}
