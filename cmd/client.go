/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shoplite/apiserver/internal/client/api"
	"github.com/shoplite/apiserver/internal/client/guard"
	"github.com/shoplite/apiserver/internal/client/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	clientAPIURL   string
	clientEmail    string
	clientPassword string
	clientName     string
)

// readPassword is a seam for term.ReadPassword so tests and scripts can
// bypass the terminal.
var readPassword = term.ReadPassword

// clientCmd groups the bundled API client. Each view consults its route
// guard before running; a redirect decision prints where the caller was
// sent instead of rendering the view.
var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "API client with a file-persisted session",
}

var clientLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, sess, err := loadSession()
		if err != nil {
			return err
		}
		if !renderable(guard.Public{}, sess) {
			return nil
		}

		password, err := resolvePassword()
		if err != nil {
			return err
		}

		result, err := api.New(clientAPIURL).Login(cmd.Context(), clientEmail, password)
		if err != nil {
			return loginFailed("login", err)
		}
		if err := store.Save(&session.Session{Token: result.Token, User: result.User}); err != nil {
			return err
		}
		fmt.Printf("signed in as %s (%s)\n", result.User.Name, result.User.Email)
		return nil
	},
}

var clientRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and persist the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, sess, err := loadSession()
		if err != nil {
			return err
		}
		if !renderable(guard.Public{}, sess) {
			return nil
		}

		password, err := resolvePassword()
		if err != nil {
			return err
		}

		result, err := api.New(clientAPIURL).Register(cmd.Context(), clientName, clientEmail, password)
		if err != nil {
			return loginFailed("registration", err)
		}
		if err := store.Save(&session.Session{Token: result.Token, User: result.User}); err != nil {
			return err
		}
		fmt.Printf("registered %s (%s)\n", result.User.Name, result.User.Email)
		return nil
	},
}

var clientWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current profile (fetched fresh from the server)",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, sess, err := loadSession()
		if err != nil {
			return err
		}
		if !renderable(guard.Protected{}, sess) {
			return nil
		}

		user, err := api.New(clientAPIURL).Me(cmd.Context(), sess.Token)
		if err != nil {
			return sessionError(store, err)
		}
		fmt.Printf("id:    %d\nname:  %s\nemail: %s\nrole:  %s\n", user.ID, user.Name, user.Email, user.Role)
		return nil
	},
}

var clientUpdateNameCmd = &cobra.Command{
	Use:   "update-name",
	Short: "Change the profile display name",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, sess, err := loadSession()
		if err != nil {
			return err
		}
		if !renderable(guard.Protected{}, sess) {
			return nil
		}
		if strings.TrimSpace(clientName) == "" {
			return errors.New("--name is required")
		}

		user, err := api.New(clientAPIURL).UpdateName(cmd.Context(), sess.Token, clientName)
		if err != nil {
			return sessionError(store, err)
		}
		// Keep the cached snapshot in step with the server.
		if err := store.Save(&session.Session{Token: sess.Token, User: user}); err != nil {
			return err
		}
		fmt.Printf("name updated to %s\n", user.Name)
		return nil
	},
}

var clientHomeCmd = &cobra.Command{
	Use:   "home",
	Short: "Show the landing view",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sess, err := loadSession()
		if err != nil {
			return err
		}
		if !renderable(guard.Protected{}, sess) {
			return nil
		}
		fmt.Printf("welcome back, %s\n", sess.User.Name)
		return nil
	},
}

var clientAdminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Show the admin view",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sess, err := loadSession()
		if err != nil {
			return err
		}
		if !renderable(guard.Admin{}, sess) {
			return nil
		}
		fmt.Printf("admin console - signed in as %s\n", sess.User.Email)
		return nil
	},
}

var clientLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the local session",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := loadSession()
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil
	},
}

func loadSession() (*session.Store, *session.Session, error) {
	path, err := session.DefaultPath()
	if err != nil {
		return nil, nil, err
	}
	store := session.NewStore(path)
	sess, err := store.Load()
	if err != nil {
		return nil, nil, err
	}
	return store, sess, nil
}

// renderable reports whether the guarded view may render, printing the
// redirect target otherwise.
func renderable(g guard.Guard, sess *session.Session) bool {
	switch g.Decide(sess) {
	case guard.RedirectLogin:
		fmt.Println("not signed in - run `apiserver client login`")
		return false
	case guard.RedirectHome:
		fmt.Println("redirecting to home - run `apiserver client home`")
		return false
	default:
		return true
	}
}

func resolvePassword() (string, error) {
	if clientPassword != "" {
		return clientPassword, nil
	}
	fmt.Print("password: ")
	raw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

// loginFailed turns an API error into the user-facing message without
// touching the existing session: a failed attempt leaves the last
// known-good state intact.
func loginFailed(action string, err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s failed: %s", action, apiErr.Error())
	}
	return fmt.Errorf("%s failed: %w", action, err)
}

// sessionError clears the local session when the server rejects the
// token, so the next command starts unauthenticated.
func sessionError(store *session.Store, err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Status == 401 {
		_ = store.Clear()
		return errors.New("session expired - run `apiserver client login`")
	}
	return err
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.AddCommand(
		clientLoginCmd,
		clientRegisterCmd,
		clientWhoamiCmd,
		clientUpdateNameCmd,
		clientHomeCmd,
		clientAdminCmd,
		clientLogoutCmd,
	)

	clientCmd.PersistentFlags().StringVar(&clientAPIURL, "api", envOrDefault("SHOPLITE_API_URL", "http://localhost:8080"), "apiserver base URL")
	clientLoginCmd.Flags().StringVar(&clientEmail, "email", "", "account email")
	clientLoginCmd.Flags().StringVar(&clientPassword, "password", "", "account password (prompted when empty)")
	clientRegisterCmd.Flags().StringVar(&clientName, "name", "", "display name")
	clientRegisterCmd.Flags().StringVar(&clientEmail, "email", "", "account email")
	clientRegisterCmd.Flags().StringVar(&clientPassword, "password", "", "account password (prompted when empty)")
	clientUpdateNameCmd.Flags().StringVar(&clientName, "name", "", "new display name")
}

func envOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}
