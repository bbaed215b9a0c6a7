package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formwizard/internal/config"
	"github.com/goliatone/go-formwizard/internal/logging"
	"github.com/goliatone/go-formwizard/pkg/credentials"
	"github.com/goliatone/go-formwizard/pkg/schema"
	"github.com/goliatone/go-formwizard/pkg/templates"
)

// app carries the state shared by subcommands once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "formwizard",
		Short:         "Multi-step marketplace forms in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/formwizard/formwizard.yml)")

	root.AddCommand(
		newRunCmd(a),
		newKindsCmd(a),
		newLintCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
	)
	return root
}

func (a *app) catalog() (*schema.Catalog, error) {
	return templates.Load(a.cfg.Templates.Dir)
}

func (a *app) credentialStore() *credentials.FileStore {
	return credentials.NewFileStore(a.cfg.Auth.CredentialFile)
}
