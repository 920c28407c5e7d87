package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartpresence/attendance-service/internal/config"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/services"
)

// nolint: gochecknoglobals
var createAdminCmd = &cobra.Command{
	Use:     "create-admin",
	Short:   "Creates an administrator account",
	Example: "ADMIN_PASSWORD=... smartpresence create-admin -u admin -e admin@campus.edu",
	RunE: func(cmd *cobra.Command, _ []string) error {
		username, _ := cmd.Flags().GetString("username")
		email, _ := cmd.Flags().GetString("email")
		fullName, _ := cmd.Flags().GetString("full-name")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("ADMIN_PASSWORD")
		}
		if password == "" {
			return errors.New("a password is required, pass --password or set ADMIN_PASSWORD")
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := cmd.Context()
		app, err := bootstrap(ctx, cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer app.close(ctx)

		user, err := app.services.User().Create(ctx, &models.UserCreateRequest{
			Username: username,
			FullName: fullName,
			Email:    email,
			Role:     models.RoleAdmin,
			Password: password,
		})
		if err != nil {
			var verrs services.ValidationErrors
			if errors.As(err, &verrs) {
				for _, v := range verrs {
					cmd.PrintErrf("  %s: %s\n", v.Field, v.Message)
				}
			}
			return fmt.Errorf("failed to create admin: %w", err)
		}

		cmd.Printf("Created admin %s (%s)\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringP("username", "u", "admin", "Login name")
	createAdminCmd.Flags().StringP("email", "e", "", "Email address")
	createAdminCmd.Flags().String("full-name", "Administrator", "Display name")
	createAdminCmd.Flags().StringP("password", "p", "", "Initial password, defaults to $ADMIN_PASSWORD")
	_ = createAdminCmd.MarkFlagRequired("email")
}
