package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/remindly/internal/theme"
)

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// promptCredentials asks for whatever was not given on the command line.
func promptCredentials(name, email, password *string, withName bool) error {
	var fields []huh.Field
	if withName && *name == "" {
		fields = append(fields, huh.NewInput().
			Title("Name").
			Value(name).
			Validate(validateRequired("Name")))
	}
	if *email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Placeholder("you@example.com").
			Value(email).
			Validate(validateRequired("Email")))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(password).
			Validate(validateRequired("Password")))
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

func signUpCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account on the sync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := promptCredentials(&name, &email, &password, true); err != nil {
				return err
			}
			return withEnv(func(ctx context.Context, e *env) error {
				if err := e.account.SignUp(ctx, name, email, password); err != nil {
					return err
				}
				fmt.Println(theme.ResultStyle(true).Render("Account created. Run `remindly signin` to start syncing."))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Account e-mail")
	return cmd
}

func signInCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and run a first sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := promptCredentials(nil, &email, &password, false); err != nil {
				return err
			}
			return withEnv(func(ctx context.Context, e *env) error {
				user, result, err := e.account.SignIn(ctx, email, password)
				if err != nil {
					return err
				}
				fmt.Println(theme.ResultStyle(true).Render("Signed in as " + user.Email))
				fmt.Println(describeResult(result))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account e-mail")
	return cmd
}

func signOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Push pending changes and forget the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e *env) error {
				if !e.account.Authenticated(ctx) {
					return errors.New("not signed in")
				}
				e.account.SignOut(ctx)
				fmt.Println(theme.ResultStyle(true).Render("Signed out. Local data was kept."))
				return nil
			})
		},
	}
}
