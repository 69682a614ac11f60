package main

import (
	"context"
	"fmt"

	"github.com/atinyakov/learncode/internal/db"
	"github.com/atinyakov/learncode/internal/envelope"
	"github.com/atinyakov/learncode/internal/lock"
	"github.com/atinyakov/learncode/internal/repository"
	"github.com/atinyakov/learncode/internal/service"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// credentialService connects to the configured database. The returned
// func closes the connection.
func credentialService() (*service.CredentialService, func(), error) {
	if _, err := envelope.DeriveMasterKey(opts.AuthSecret); err != nil {
		return nil, nil, err
	}
	// Same locker as the server, so a rotation here waits for in-flight
	// settings updates there.
	locker, closeLocker, err := lock.Open(context.Background(), opts.RedisAddr, lock.DefaultTTL, log)
	if err != nil {
		return nil, nil, err
	}
	if opts.RedisAddr == "" {
		log.Warn("REDIS_ADDR is not set; not serialized against a running server")
	}
	conn, err := db.InitPostgres(opts.DatabaseDSN)
	if err != nil {
		_ = closeLocker()
		return nil, nil, err
	}
	svc := service.NewCredentialService(
		repository.NewPostgresSecretStore(conn),
		envelope.NewKeyring(opts.AuthSecret),
		locker,
		log,
	)
	return svc, func() {
		_ = conn.Close()
		_ = closeLocker()
	}, nil
}

var checkCmd = &cobra.Command{
	Use:   "check <user-id>",
	Short: "Verify that a user's stored API key decrypts with the current secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, done, err := credentialService()
		if err != nil {
			return err
		}
		defer done()

		view, err := svc.Settings(context.Background(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s / %s\n", color.GreenString("✓"), view.Provider, view.ModelLabel)
		if view.HasAPIKey {
			fmt.Fprintf(out, "%s api key %s\n", color.CyanString("→"), view.KeyHint)
		} else {
			fmt.Fprintln(out, color.YellowString("!")+" no api key stored")
		}
		return nil
	},
}

var rotateCmd = &cobra.Command{
	Use:   "rotate-key <user-id>",
	Short: "Re-encrypt a user's stored secrets under a fresh user key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, done, err := credentialService()
		if err != nil {
			return err
		}
		defer done()

		res, err := svc.RotateUserKey(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s rotated user key, %d secret(s) re-encrypted\n", color.GreenString("✓"), res.Rotated)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd, rotateCmd)
}
