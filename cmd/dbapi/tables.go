package dbapi

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/edgeflare/dbapi/pkg/crud"
	"github.com/edgeflare/dbapi/pkg/sqldb"
	"github.com/spf13/cobra"
)

var tablesCmd = &cobra.Command{
	Use:   "tables [table...]",
	Short: "List tables and the identity column used to address their rows",
	Long: `Lists the user tables of the configured database with the identity column dbapi resolves
for each. Given table names, prints their columns instead.`,
	RunE: runTables,
}

func init() {
	f := tablesCmd.Flags()
	f.String("database.driver", "", "database driver: sqlite3, postgres, mysql or sqlserver")
	f.StringP("database.dsn", "d", "", "database connection string")
}

func runTables(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := sqldb.Open(ctx, sqldb.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN, MaxConns: 1})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	engine := crud.NewEngine(db, crud.WithLogger(logger))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	if len(args) > 0 {
		fmt.Fprintln(w, "TABLE\tCOLUMN\tTYPE\tPRIMARY KEY\tIDENTITY")
		for _, table := range args {
			info, err := engine.Describe(ctx, table)
			if err != nil {
				return err
			}
			for _, c := range info.Columns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\n", info.Name, c.Name, c.DataType, c.IsPrimaryKey, c.Name == info.Identity)
			}
		}
		return nil
	}

	names, err := engine.Tables(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "TABLE\tIDENTITY\tCOLUMNS")
	for _, name := range names {
		info, err := engine.Describe(ctx, name)
		if err != nil {
			return err
		}
		cols := make([]string, len(info.Columns))
		for i, c := range info.Columns {
			cols[i] = c.Name
		}
		identity := info.Identity
		if identity == "" {
			identity = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, identity, strings.Join(cols, ","))
	}
	return nil
}
