// Package cli implements the querydsl command line: schema generation and
// queries over the membership model.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/asaidimu/go-querydsl/config"
	"github.com/asaidimu/go-querydsl/core/persistence"
	"github.com/asaidimu/go-querydsl/model"
	"github.com/asaidimu/go-querydsl/sqlite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "querydsl",
		Short: "Type-safe queries over the membership model",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every statement")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewDemoCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	return cmd
}

func loadConfig(opts *RootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// session is an open database with the model's schema in place.
type session struct {
	logger  *zap.Logger
	db      *sql.DB
	factory *persistence.QueryFactory
}

func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	interactor := sqlite.NewSQLiteInteractor(db, logger, cfg.InteractorOptions(), nil)
	factory, err := persistence.NewQueryFactory(interactor, cfg.FactoryOptions(logger)...)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := factory.CreateSchema(ctx, model.Registry()); err != nil {
		db.Close()
		return nil, err
	}
	return &session{logger: logger, db: db, factory: factory}, nil
}

func (s *session) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("Failed to close database", zap.Error(err))
	}
	_ = s.logger.Sync()
}
