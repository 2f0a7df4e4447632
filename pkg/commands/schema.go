package commands

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keystone-orm/keystone/internal/cli/config"
	"github.com/keystone-orm/keystone/internal/cli/ui"
	"github.com/keystone-orm/keystone/internal/schemagen"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// NewSchemaCommand creates the schema command
func NewSchemaCommand(models []interface{}) *cobra.Command {
	var (
		apply   bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Generate DDL from class metadata",
		Long: `Generates CREATE TABLE and CREATE VIEW statements from the resolved
class metadata, honoring each class's inheritance strategy. Statements
are printed in dependency order; with --apply they are executed against
the configured database in a single transaction.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager(models)
			if err != nil {
				return err
			}

			ordered, err := mgr.OrderedReferencedClasses()
			if err != nil {
				renderError(err, noColor)
				return err
			}

			gen := schemagen.NewGenerator(ordered)
			statements, err := gen.GenerateSchema()
			if err != nil {
				renderError(err, noColor)
				return err
			}

			if !apply {
				for _, stmt := range statements {
					fmt.Printf("-- %s\n%s\n\n", stmt.Class, stmt.SQL)
				}
				return nil
			}

			dbURL := config.GetDatabaseURL()
			if dbURL == "" {
				return fmt.Errorf("no database URL configured (set DATABASE_URL or database.url in keystone.yml)")
			}

			db, err := sql.Open("pgx", dbURL)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			log, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}

			applier := schemagen.NewApplier(db, log)
			if err := applier.Apply(cmd.Context(), statements); err != nil {
				renderError(err, noColor)
				return err
			}

			ui.Success(os.Stdout, "applied %d schema statement(s)", len(statements))
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "execute the DDL against the configured database")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}
