// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package main

import (
	"context"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quillboard/quillboard/internal/auth"
	authpg "github.com/quillboard/quillboard/internal/auth/postgres"
	"github.com/quillboard/quillboard/internal/config"
	"github.com/quillboard/quillboard/internal/store"
	"github.com/quillboard/quillboard/pkg/errutil"
)

const defaultSeedTimeout = 30 * time.Second

// seedAccount is one entry in the account seed file.
type seedAccount struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Theme    string `yaml:"theme"`
}

// seedFile is the YAML shape of the account seed file.
type seedFile struct {
	Accounts []seedAccount `yaml:"accounts"`
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create accounts from a seed file",
		Long: `Create user accounts listed in a YAML seed file. Passwords are
hashed with argon2id before storage. The command is idempotent: accounts
that already exist are skipped.`,
		RunE: runSeed,
	}

	cmd.Flags().String("file", "seeds/accounts.yaml", "account seed file")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().Duration("timeout", defaultSeedTimeout, "timeout for database operations")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath(cmd), cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}

	seedPath, _ := cmd.Flags().GetString("file")
	accounts, err := loadSeedAccounts(seedPath)
	if err != nil {
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := authpg.NewUserRepository(pool)
	hasher := auth.NewArgon2idHasher(auth.DefaultArgon2Params())

	return seedUsers(ctx, users, hasher, accounts, cmd.Printf)
}

// loadSeedAccounts parses and validates the YAML seed file.
func loadSeedAccounts(path string) ([]seedAccount, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, oops.Code("SEED_FILE_INVALID").With("path", path).Wrap(err)
	}

	var parsed seedFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, oops.Code("SEED_FILE_INVALID").With("path", path).Wrap(err)
	}
	if len(parsed.Accounts) == 0 {
		return nil, oops.Code("SEED_FILE_INVALID").
			With("path", path).
			Errorf("seed file contains no accounts")
	}

	for _, account := range parsed.Accounts {
		if err := auth.ValidateUsername(account.Username); err != nil {
			return nil, oops.Code("SEED_FILE_INVALID").
				With("username", account.Username).
				Wrap(err)
		}
		if account.Password == "" {
			return nil, oops.Code("SEED_FILE_INVALID").
				With("username", account.Username).
				Errorf("password is required")
		}
	}
	return parsed.Accounts, nil
}

// seedUsers hashes each password and creates the account, skipping
// duplicates so re-running is safe.
func seedUsers(ctx context.Context, users auth.UserRepository, hasher auth.PasswordHasher,
	accounts []seedAccount, printf func(string, ...any),
) error {
	for _, account := range accounts {
		hash, err := hasher.Hash(account.Password)
		if err != nil {
			return oops.Code("SEED_FAILED").
				With("username", account.Username).
				Wrap(err)
		}

		identity, err := auth.NewIdentity(account.Username, hash)
		if err != nil {
			return oops.Code("SEED_FAILED").
				With("username", account.Username).
				Wrap(err)
		}
		identity.Preferences.Theme = account.Theme

		if err := users.Create(ctx, identity); err != nil {
			if errutil.Code(err) == "USER_ALREADY_EXISTS" {
				printf("Account %s already exists, skipping\n", account.Username)
				continue
			}
			return oops.Code("SEED_FAILED").
				With("username", account.Username).
				Wrap(err)
		}
		printf("Account %s created\n", account.Username)
	}
	return nil
}
