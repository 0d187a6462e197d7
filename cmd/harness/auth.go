package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Renzios/sharerapy-harness/internal/app"
	"github.com/Renzios/sharerapy-harness/internal/model"
)

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Signup and login against the auth test double",
	}
	cmd.AddCommand(newSignupCommand(), newLoginCommand())
	return cmd
}

func newSignupCommand() *cobra.Command {
	var req model.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				return a.Auth.Signup(ctx, &req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "e-mail address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	return cmd
}

// newLoginCommand tries the backend login. Local users do not outlive a run,
// so without a backend it prints null.
func newLoginCommand() *cobra.Command {
	var req model.LoginRequest
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Open a session; prints null on bad credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				return a.Auth.Login(ctx, &req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "e-mail address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	return cmd
}
