package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/apperr"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/models"
	"storefront/internal/users"
)

// store is what the commands need from the database connection.
type store struct {
	Users         users.Store
	EnsureIndexes func() error
	Close         func()
}

type connectFunc func() (*store, error)

func connectStore() (*store, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	db := client.Database(config.AppEnv.DBName)
	return &store{
		Users:         database.NewUserRepository(db),
		EnsureIndexes: func() error { return database.EnsureIndexes(db) },
		Close:         func() { database.Disconnect(client) },
	}, nil
}

// noTokens satisfies users.TokenIssuer for commands that never issue tokens.
type noTokens struct{}

func (noTokens) Issue(models.User) (string, error) {
	return "", errors.New("token issuance is not available from the CLI")
}

func createAdminCmd(connect connectFunc) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a user with the admin role",
		Example: `  storefront-admin create-admin --name Ops --email ops@example.com --password 's3cret-pass'
  STOREFRONT_ADMIN_PASSWORD=... storefront-admin create-admin --name Ops --email ops@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = strings.TrimSpace(os.Getenv("STOREFRONT_ADMIN_PASSWORD"))
			}

			s, err := connect()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			svc := users.NewService(s.Users, noTokens{})
			admin, err := svc.CreateAdmin(ctx, users.RegisterInput{Name: name, Email: email, Password: password})
			if err != nil {
				if apperr.KindOf(err) != apperr.Internal {
					return errors.New(apperr.MessageOf(err))
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created with id %s\n", admin.Email, admin.ID.Hex())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "password (falls back to STOREFRONT_ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func ensureIndexesCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create the unique and listing indexes the API relies on",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.EnsureIndexes(); err != nil {
				var cmdErr mongo.CommandError
				if errors.As(err, &cmdErr) && cmdErr.HasErrorCode(11000) {
					return fmt.Errorf("existing documents violate a unique index, clean them up first: %w", err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "indexes ensured")
			return nil
		},
	}
}
