package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inkpress-dev/inkpress/internal/auth"
	"github.com/inkpress-dev/inkpress/internal/config"
	"github.com/inkpress-dev/inkpress/internal/errors"
	"github.com/inkpress-dev/inkpress/internal/store"
)

func initCmd() *cobra.Command {
	var (
		name       string
		addr       string
		adminEmail string
		adminName  string
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a new site",
		Long: `Create a new site: write inkpress.json, initialize the database,
and optionally create the first admin account.

Examples:
  inkpress init
  inkpress init myblog --name "My Blog" --admin-email me@example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, name, addr, adminEmail, adminName)
		},
	}

	cmd.Flags().StringVar(&name, "name", "Inkpress", "Site name")
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "Listen address")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "Create an admin account with this email")
	cmd.Flags().StringVar(&adminName, "admin-name", "Admin", "Display name for the admin account")
	return cmd
}

func runInit(dir, name, addr, adminEmail, adminName string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.New("E100").Wrap(err)
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil {
		return errors.New("E500").
			WithDetail(configPath + " already exists").
			WithSuggestion("Remove it first, or run init in an empty directory")
	}

	cfg := config.New()
	cfg.Name = name
	cfg.Addr = addr
	if err := cfg.SaveTo(configPath); err != nil {
		return err
	}
	success("Wrote %s", configPath)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath()), 0755); err != nil {
		return errors.New("E100").Wrap(err)
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
	success("Initialized database at %s", cfg.DatabasePath())

	if adminEmail != "" {
		password := randomPassword()
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		u := &store.User{Email: adminEmail, Name: adminName, PasswordHash: hash, Role: store.RoleAdmin}
		if err := st.CreateUser(ctx, u); err != nil {
			return errors.New("E103").Wrap(err)
		}
		success("Created admin account %s", adminEmail)
		info("Generated password: %s", password)
		info("Change it after first login, or set a new one with 'inkpress create-user'.")
	}

	fmt.Println()
	info("Start the server with: inkpress serve")
	return nil
}

// randomPassword generates a 16-byte hex password for bootstrap accounts.
func randomPassword() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
