package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inkpress-dev/inkpress/internal/auth"
	"github.com/inkpress-dev/inkpress/internal/errors"
	"github.com/inkpress-dev/inkpress/internal/store"
)

func createUserCmd() *cobra.Command {
	var (
		configPath string
		name       string
		role       string
		password   string
	)

	cmd := &cobra.Command{
		Use:   "create-user <email>",
		Short: "Create an admin or editor account",
		Long: `Create an account that can sign in to the admin area.

The password is read from the --password flag, the INKPRESS_PASSWORD
environment variable, or interactively from stdin, in that order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateUser(configPath, args[0], name, role, password)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to inkpress.json")
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the email's local part)")
	cmd.Flags().StringVar(&role, "role", store.RoleAdmin, "Account role: admin or editor")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if not given)")
	return cmd
}

func runCreateUser(configPath, email, name, role, password string) error {
	if role != store.RoleAdmin && role != store.RoleEditor {
		return errors.New("E502").
			WithDetail("role must be \"admin\" or \"editor\", got " + role)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if name == "" {
		name = email
		if i := strings.IndexByte(email, '@'); i > 0 {
			name = email[:i]
		}
	}

	if password == "" {
		password = os.Getenv("INKPRESS_PASSWORD")
	}
	if password == "" {
		fmt.Printf("Password for %s: ", email)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return err
		}
		password = strings.TrimSpace(line)
	}
	if len(password) < 8 {
		return errors.New("E502").
			WithDetail("password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.InitSchema(ctx); err != nil {
		return err
	}

	u := &store.User{Email: email, Name: name, PasswordHash: hash, Role: role}
	if err := st.CreateUser(ctx, u); err != nil {
		return errors.New("E103").Wrap(err)
	}

	success("Created %s account %s", role, email)
	return nil
}
