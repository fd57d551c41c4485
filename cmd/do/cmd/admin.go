package cmd

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/templui/skillfolio/internal/config"
	"github.com/templui/skillfolio/internal/crud"
	"github.com/templui/skillfolio/internal/model"
	"github.com/templui/skillfolio/internal/repository"
	"github.com/templui/skillfolio/internal/validation"
)

func AdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	var demote bool
	promote := &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the administrator role to an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := model.RoleAdmin
			if demote {
				role = model.RoleUser
			}
			return withDB(cmd.Context(), func(conn *sqlx.DB, cfg *config.Config) error {
				users := repository.NewUserRepository(conn, crud.WithTimeout(cfg.DB.QueryTimeout))
				user, err := users.ByEmail(cmd.Context(), validation.NormalizeEmail(args[0]))
				if err != nil {
					return err
				}
				if user.Role == role {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is already %s\n", user.Email, role)
					return nil
				}

				user.Role = role
				user.UpdatedAt = model.Now()
				err = users.Update(cmd.Context(), user)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Email, role)
				return nil
			})
		},
	}
	promote.Flags().BoolVar(&demote, "demote", false, "revoke the administrator role instead")

	cmd.AddCommand(promote)
	return cmd
}
