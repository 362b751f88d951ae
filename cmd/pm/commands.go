package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/LocalVault/krypto"
	"github.com/Hussein-Mazeh/LocalVault/store"
)

func newInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set the master password for a new vault",
		Long: `Creates the vault database and registers the master password.

With --force an existing master password is replaced. Entries saved
under the old password can no longer be decrypted afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			needs, err := svc.NeedsMasterSetup(ctx)
			if err != nil {
				return err
			}
			if !needs && !force {
				return userError{msg: "vault already initialised; run pm session to unlock it"}
			}

			pw, err := a.readConfirmed("Enter master password: ", "Confirm master password: ")
			if err != nil {
				return err
			}
			defer krypto.Wipe(pw)

			if res := svc.Register(ctx, pw); !res.OK() {
				return res.Err
			}
			fmt.Fprintf(a.out, "master password set; vault ready at %s\n", a.cfg.DBPath())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing master password")
	return cmd
}

func newRestoreCmd(a *app) *cobra.Command {
	var (
		file  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Create the vault from a backup file",
		Long: `Restores every folder and credential from a backup into the vault.
The backup password becomes the new master password.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if file == "" {
				return userError{msg: "missing required flag: --file"}
			}

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			needs, err := svc.NeedsMasterSetup(ctx)
			if err != nil {
				return err
			}
			if !needs && !force {
				return userError{msg: "vault already initialised; use import inside pm session, or --force"}
			}

			data, err := store.ReadBackupFile(file)
			if err != nil {
				return userError{msg: err.Error()}
			}

			pw, err := a.readSecret("Backup password: ")
			if err != nil {
				return fmt.Errorf("read backup password: %w", err)
			}
			defer krypto.Wipe(pw)

			if res := svc.RestoreFromBackup(ctx, bytes.NewReader(data), pw); !res.OK() {
				return res.Err
			}
			fmt.Fprintln(a.out, "vault restored; the backup password is now your master password")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "backup file to restore")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing vault user")
	return cmd
}

func newSessionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Unlock the vault and start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			pw, err := a.readSecret("Enter master password: ")
			if err != nil {
				return fmt.Errorf("read master password: %w", err)
			}
			res := svc.Login(ctx, pw)
			krypto.Wipe(pw)
			if !res.OK() {
				return res.Err
			}

			fmt.Fprintln(a.out, "session unlocked; type 'help' for commands")
			r := &repl{a: a, svc: svc}
			return r.run(ctx)
		},
	}
}

// readConfirmed prompts twice and returns the secret when both entries match.
func (a *app) readConfirmed(prompt, confirmPrompt string) ([]byte, error) {
	secret, err := a.readSecret(prompt)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	confirm, err := a.readSecret(confirmPrompt)
	if err != nil {
		krypto.Wipe(secret)
		return nil, fmt.Errorf("read confirmation: %w", err)
	}
	defer krypto.Wipe(confirm)

	if !bytes.Equal(secret, confirm) {
		krypto.Wipe(secret)
		return nil, userError{msg: "passwords do not match"}
	}
	return secret, nil
}
