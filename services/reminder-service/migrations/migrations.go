// Package migrations carries the reminder-service schema. Every statement is
// idempotent, so Apply is safe to run on each start.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/carepulse/portal/libs/db"
)

//go:embed *.sql
var files embed.FS

// Apply runs every .sql file in name order.
func Apply(ctx context.Context, pool *db.Pool) error {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := files.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}
