package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Hussein-Mazeh/LocalVault/auth"
	"github.com/Hussein-Mazeh/LocalVault/internal/config"
	"github.com/Hussein-Mazeh/LocalVault/internal/db"
	"github.com/Hussein-Mazeh/LocalVault/internal/logging"
	"github.com/Hussein-Mazeh/LocalVault/internal/service"
	"github.com/Hussein-Mazeh/LocalVault/internal/vault"
)

var cliVersion = "0.2.0" // overridden by the linker

type userError struct {
	msg string
}

func (e userError) Error() string { return e.msg }

// app carries the process-wide collaborators of every command.
type app struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	cfg config.Config
	log zerolog.Logger

	readSecret func(prompt string) ([]byte, error)
	openStore  func(cfg config.Config) (vault.Store, error)
	svcOpts    []service.Option

	clip    clipboardWriter
	clipTTL time.Duration
	now     func() time.Time
}

func newApp() *app {
	a := &app{
		in:        bufio.NewReader(os.Stdin),
		out:       os.Stdout,
		errOut:    os.Stderr,
		log:       zerolog.Nop(),
		openStore: openSQLite,
		clip:      systemClipboard{},
		clipTTL:   30 * time.Second,
		now:       time.Now,
	}
	a.readSecret = a.promptPassword
	return a
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	a := newApp()
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	os.Exit(handleError(a.errOut, err))
}

func newRootCmd(a *app) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "pm",
		Short: "pm is a local, single-user encrypted credential vault.",
		Long: `pm keeps service credentials in a local SQLite vault. Sensitive fields
are encrypted with AES-256-GCM under a key derived from your master
password with Argon2id. Nothing leaves the machine except through an
explicit, separately encrypted backup file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfgFile, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return userError{msg: err.Error()}
			}
			opts := cfg.Logging()
			opts.Writer = a.errOut
			log, err := logging.New(opts)
			if err != nil {
				return userError{msg: err.Error()}
			}
			a.cfg = cfg
			a.log = log
			return nil
		},
	}
	cmd.Version = cliVersion
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return userError{msg: err.Error()}
	})

	config.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(newInitCmd(a))
	cmd.AddCommand(newRestoreCmd(a))
	cmd.AddCommand(newSessionCmd(a))
	cmd.AddCommand(newVersionCmd(a))
	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pm version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.out, cliVersion)
		},
	}
}

func openSQLite(cfg config.Config) (vault.Store, error) {
	d, err := db.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open vault database: %w", err)
	}
	return d, nil
}

func (a *app) openService() (*service.Service, error) {
	st, err := a.openStore(a.cfg)
	if err != nil {
		return nil, err
	}
	opts := []service.Option{
		service.WithLogger(a.log),
		service.WithPolicy(a.cfg.PasswordPolicy()),
	}
	return service.New(st, append(opts, a.svcOpts...)...), nil
}

// handleError prints err for the user and returns the exit status:
// 0 on success, 1 for user errors, 2 for anything unexpected.
func handleError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}

	var uerr userError
	if errors.As(userFacing(err), &uerr) {
		fmt.Fprintln(w, uerr.Error())
		return 1
	}

	fmt.Fprintf(w, "unexpected error: %v\n", err)
	return 2
}

// userFacing turns vault error categories into userError messages and
// returns any other error unchanged.
func userFacing(err error) error {
	var uerr userError
	if errors.As(err, &uerr) {
		return uerr
	}

	var perr *auth.PolicyError
	switch {
	case errors.As(err, &perr):
		return userError{msg: "password does not meet policy requirements: " + perr.Msg}
	case errors.Is(err, vault.ErrAuthenticationFailure):
		return userError{msg: "incorrect password"}
	case errors.Is(err, vault.ErrNoUserRegistered):
		return userError{msg: "no master password set; run pm init first"}
	case errors.Is(err, vault.ErrUnauthenticated):
		return userError{msg: "vault is locked; run pm session to unlock"}
	case errors.Is(err, vault.ErrBackupCorruptOrWrongPassword):
		return userError{msg: vault.ErrBackupCorruptOrWrongPassword.Error()}
	case errors.Is(err, vault.ErrNotFound):
		return userError{msg: "not found"}
	case errors.Is(err, vault.ErrInvalidCredential), errors.Is(err, vault.ErrInvalidFolder):
		return userError{msg: err.Error()}
	case errors.Is(err, vault.ErrStorage):
		return userError{msg: vault.ErrStorage.Error()}
	case errors.Is(err, vault.ErrInternal):
		return userError{msg: vault.ErrInternal.Error()}
	case errors.Is(err, context.Canceled):
		return userError{msg: "cancelled"}
	}
	return err
}
