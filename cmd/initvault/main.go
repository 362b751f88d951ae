// Command initvault creates the vault directory and an empty, migrated
// SQLite database without registering a master password.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Hussein-Mazeh/LocalVault/internal/config"
	"github.com/Hussein-Mazeh/LocalVault/internal/db"
	"github.com/Hussein-Mazeh/LocalVault/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "initvault: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("initvault", pflag.ContinueOnError)
	config.AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	v := viper.New()
	if err := config.BindFlags(v, fs); err != nil {
		return err
	}
	cfgFile, _ := fs.GetString("config")
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Logging())
	if err != nil {
		return err
	}

	d, err := db.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open vault database: %w", err)
	}
	defer d.Close()

	log.Info().Str("path", d.Path()).Msg("vault database ready")
	return nil
}
