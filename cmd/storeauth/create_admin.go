package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-storeauth"
	"github.com/goliatone/go-storeauth/config"
	"github.com/goliatone/go-storeauth/logging"
)

type createAdminOptions struct {
	name          string
	email         string
	password      string
	passwordStdin bool
	role          string
}

// NewCreateAdminCmd creates the create-admin subcommand.
func NewCreateAdminCmd() *cobra.Command {
	opts := &createAdminOptions{}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Provision an account with an operator chosen role",
		Long: `Create an account directly in the store database. Unlike the
public registration endpoint any role can be assigned, admin by default.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			if opts.passwordStdin {
				pw, err := readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
				opts.password = pw
			}
			return runCreateAdmin(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.password, "password", "", "account password")
	cmd.Flags().BoolVar(&opts.passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().StringVar(&opts.role, "role", string(auth.RoleAdmin), "account role (buyer, seller or admin)")
	config.BindFlags(cmd.Flags())

	return cmd
}

func runCreateAdmin(ctx context.Context, cfg config.Config, opts *createAdminOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	role, ok := auth.ParseRole(opts.role)
	if !ok {
		return fmt.Errorf("unknown role %q", opts.role)
	}

	logger := logging.Setup(logging.Options{
		Service: "storeauth",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   "warn",
	})

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	session, err := app.accounts.Provision(ctx, auth.RegisterRequest{
		Name:     opts.name,
		Email:    opts.email,
		Password: opts.password,
		Role:     role,
	})
	if err != nil {
		return describeError(err)
	}

	fmt.Fprintf(out, "created %s account %s (%s)\n", session.Identity.Role, session.Identity.Email, session.Identity.ID)
	return nil
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// describeError flattens field errors into a single line for the terminal
func describeError(err error) error {
	richErr := auth.AsError(err)
	if len(richErr.Fields) == 0 {
		return err
	}
	parts := make([]string, 0, len(richErr.Fields))
	for _, field := range []string{"name", "email", "password", "role"} {
		if msg, ok := richErr.Fields[field]; ok {
			parts = append(parts, field+": "+msg)
		}
	}
	if len(parts) == 0 {
		return err
	}
	return fmt.Errorf("%s: %s", richErr.Message, strings.Join(parts, "; "))
}
