package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Account commands",
	}

	cmd.AddCommand(newAuthRegisterCmd())
	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthPasswordCmd())

	return cmd
}

func newAuthRegisterCmd() *cobra.Command {
	var email, pass, username string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || pass == "" {
				return fmt.Errorf("--email and --pass are required")
			}

			req := map[string]string{
				"email":    email,
				"password": pass,
			}
			if username != "" {
				req["username"] = username
			}
			var result TokenResult

			if err := client.Post("/api/auth/register", req, &result); err != nil {
				return err
			}

			// Save token
			if err := cfg.SaveToken(result.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	cmd.Flags().StringVar(&username, "username", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var email, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || pass == "" {
				return fmt.Errorf("--email and --pass are required")
			}

			req := map[string]string{
				"email":    email,
				"password": pass,
			}
			var result TokenResult

			if err := client.Post("/api/auth/login", req, &result); err != nil {
				return err
			}

			// Save token
			if err := cfg.SaveToken(result.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newAuthPasswordCmd() *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change the password of the logged in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{
				"current_password": current,
				"new_password":     next,
			}

			if err := client.Put("/api/auth/password", req, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.PrintMessage("Password changed")
			return nil
		},
	}

	cmd.Flags().StringVar(&current, "current", "", "Current password (required)")
	cmd.Flags().StringVar(&next, "new", "", "New password (required)")
	_ = cmd.MarkFlagRequired("current")
	_ = cmd.MarkFlagRequired("new")

	return cmd
}
