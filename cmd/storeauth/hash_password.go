package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-storeauth"
)

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash of a password",
		Long:  `Print the bcrypt hash of a password given as argument or, when omitted, read from stdin.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				pw, err := readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = pw
			}
			return runHashPassword(auth.NewBcryptHasher(cost), password, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&cost, "bcrypt-cost", auth.DefaultPasswordCost, "bcrypt work factor")

	return cmd
}

func runHashPassword(hasher auth.PasswordHasher, password string, out io.Writer) error {
	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}
