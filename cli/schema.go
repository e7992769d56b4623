package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/asaidimu/go-querydsl/core/schema"
	"github.com/asaidimu/go-querydsl/model"
	"github.com/asaidimu/go-querydsl/sqlite"
	"github.com/spf13/cobra"
)

type entityDDL struct {
	Entity     string   `json:"entity"`
	Statements []string `json:"statements"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [descriptor-file]",
		Short: "Print the DDL of an entity descriptor file",
		Long: `Print the CREATE TABLE and CREATE INDEX statements for every entity of a
YAML or JSON descriptor file, referenced entities first. Without a file the
built-in membership model is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := model.Registry()
			if len(args) == 1 {
				defs, err := schema.LoadFile(args[0])
				if err != nil {
					return err
				}
				if registry, err = schema.NewRegistry(defs...); err != nil {
					return err
				}
				if err := registry.CheckReferences(); err != nil {
					return err
				}
			}
			return runSchema(rootOpts, registry, cmd.OutOrStdout())
		},
	}
}

func runSchema(opts *RootOptions, registry *schema.Registry, w io.Writer) error {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}
	generator := sqlite.NewSQLiteInteractor(nil, logger, cfg.InteractorOptions(), nil)

	var out []entityDDL
	for _, entity := range registry.Entities() {
		stmts, err := generator.CreateTableSQL(entity, registry)
		if err != nil {
			return fmt.Errorf("entity %s: %w", entity.Name, err)
		}
		stmts = append(stmts, generator.CreateIndexSQL(entity)...)
		out = append(out, entityDDL{Entity: entity.Name, Statements: stmts})
	}

	return newPrinter(opts, w).print(out, func(w io.Writer) error {
		for _, e := range out {
			if _, err := fmt.Fprintf(w, "-- %s\n%s\n\n", e.Entity, strings.Join(e.Statements, "\n")); err != nil {
				return err
			}
		}
		return nil
	})
}
