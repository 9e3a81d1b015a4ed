package commands

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nam4dev/apy-rest2front-sub001/internal/mockapi"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
)

func newMockCommand(a *app) *cobra.Command {
	var (
		addr    string
		watch   bool
		seed    string
		lenient bool
	)

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve an in-memory backend for the loaded schemas",
		Long: `Serve an in-memory REST backend validating documents against the
schema file. With --watch the schemas are reloaded when the file changes.
Changes are streamed to websocket subscribers at /_events (see "apy events").
With metrics enabled the request metrics are served at /metrics.
When mock.auth sets a secret or users, requests need a bearer token
(see "apy mock token") or basic credentials.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.schemas()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Mock.Addr
			}

			opts := mockapi.Options{
				Registry:            reg,
				Logger:              a.logger,
				PageSize:            a.cfg.Mock.PageSize,
				AllowMissingIfMatch: lenient,
				Auth:                a.authenticator(),
			}
			if a.metrics != nil {
				opts.Metrics = a.metrics
				opts.MetricsHandler = promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{})
			}
			server := mockapi.New(opts)

			if seed != "" {
				if err := seedServer(server, seed); err != nil {
					return err
				}
			}

			if watch {
				w, err := schema.NewWatcher(a.cfg.SchemaFile, reg, schema.WatcherOptions{
					Logger: a.logger,
					OnReload: func(err error) {
						if err == nil {
							server.NotifySchemas()
							fmt.Fprintf(cmd.ErrOrStderr(), "schemas reloaded: %d resources\n", reg.Count())
						}
					},
				})
				if err != nil {
					return err
				}
				if err := w.Start(); err != nil {
					return err
				}
				defer w.Stop()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Mock backend on %s (%d resources). Press Ctrl+C to stop.\n", addr, reg.Count())
			return server.Serve(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default mock.addr)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload schemas when the schema file changes")
	cmd.Flags().StringVar(&seed, "seed", "", "JSON file mapping resource names to documents to preload")
	cmd.Flags().BoolVar(&lenient, "allow-missing-if-match", false, "accept writes without an If-Match header")

	cmd.AddCommand(newMockTokenCommand(a))
	cmd.AddCommand(newMockHashPasswordCommand(a))
	return cmd
}

// authenticator builds the mock backend guard from mock.auth
func (a *app) authenticator() *mockapi.Authenticator {
	auth := a.cfg.Mock.Auth
	return mockapi.NewAuthenticator(mockapi.AuthOptions{
		Secret:   auth.Secret,
		TokenTTL: auth.TokenTTL,
		Users:    auth.Users,
	})
}

func newMockTokenCommand(a *app) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token accepted by the mock backend",
		Long: `Issue a bearer token signed with mock.auth.secret. Use it as api_key
to reach a mock backend started with the same secret.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := mockapi.AuthOptions{Secret: a.cfg.Mock.Auth.Secret, TokenTTL: a.cfg.Mock.Auth.TokenTTL}
			if ttl > 0 {
				opts.TokenTTL = ttl
			}
			if opts.Secret == "" {
				return errors.New("mock.auth.secret is not set")
			}
			token, err := mockapi.NewAuthenticator(opts).GenerateToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default mock.auth.token_ttl)")
	return cmd
}

func newMockHashPasswordCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password for mock.auth.users",
		Long: `Hash a password for the mock.auth.users section of apy.yaml. The
password is prompted for, or read from the first line of stdin when stdin
is not a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := a.readPassword(cmd)
			if err != nil {
				return err
			}
			hash, err := mockapi.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func (a *app) readPassword(cmd *cobra.Command) (string, error) {
	var password string
	if interactive() && cmd.InOrStdin() == os.Stdin {
		if err := survey.AskOne(&survey.Password{Message: "Password:"}, &password); err != nil {
			return "", err
		}
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	return password, nil
}

// seedServer preloads documents from a {"resource": [docs...]} file
func seedServer(server *mockapi.Server, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed map[string][]map[string]any
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for name, docs := range seed {
		if _, err := server.Seed(name, docs...); err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
	}
	return nil
}
