package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/huh"
	"go.uber.org/zap"

	"cloud-deploy-dashboard/internal/client"
	"cloud-deploy-dashboard/internal/credentials"
)

// Login obtains a token for username and stores it. Missing credentials
// are prompted for.
func Login(ctx context.Context, opts *GlobalOptions, out io.Writer, username, password string) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.close()

	if username == "" || password == "" {
		if err := promptCredentials(ctx, &username, &password); err != nil {
			return err
		}
	}

	token, err := e.client.Login(ctx, username, password)
	if err != nil {
		if client.StatusCode(err) == http.StatusUnauthorized {
			return errors.New("login failed: invalid username or password")
		}
		return fmt.Errorf("login failed: %s", client.Detail(err))
	}

	if err := e.store.SetToken(ctx, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	e.logger.Info("logged in", zap.String("username", username), zap.String("api", e.cfg.Client.BaseURL))
	fmt.Fprintf(out, "Logged in to %s as %s\n", e.cfg.Client.BaseURL, username)
	if fs, ok := e.store.(*credentials.FileStore); ok {
		fmt.Fprintf(out, "Token saved to %s\n", fs.Path())
	}
	return nil
}

func promptCredentials(ctx context.Context, username, password *string) error {
	required := func(s string) error {
		if s == "" {
			return errors.New("required")
		}
		return nil
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(username).
				Validate(required),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(required),
		).Title("Log in"),
	).RunWithContext(ctx)
}

// Logout deletes the stored token.
func Logout(ctx context.Context, opts *GlobalOptions, out io.Writer) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.store.DeleteToken(ctx); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	fmt.Fprintln(out, "Logged out")
	return nil
}
