package migration

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embedded embed.FS

const createLedger = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Runner applies the SQL migrations that gorm's AutoMigrate cannot express,
// such as views and ordered indexes. Applied files are recorded in
// schema_migrations and never run twice.
type Runner struct {
	db     *gorm.DB
	files  fs.FS
	logger *logrus.Logger
}

func NewRunner(db *gorm.DB, logger *logrus.Logger) *Runner {
	files, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	return &Runner{db: db, files: files, logger: logger}
}

// Run executes pending migrations in file name order. Each file runs in its
// own transaction together with its ledger entry.
func (r *Runner) Run() error {
	if r.db == nil {
		return nil
	}

	if err := r.db.Exec(createLedger).Error; err != nil {
		return fmt.Errorf("failed to create migration ledger: %w", err)
	}

	var applied []string
	if err := r.db.Raw("SELECT name FROM schema_migrations").Scan(&applied).Error; err != nil {
		return fmt.Errorf("failed to read migration ledger: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	names, err := fs.Glob(r.files, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	pending := 0
	for _, name := range names {
		if done[name] {
			continue
		}
		if err := r.apply(name); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", name, err)
		}
		pending++
		r.logger.WithField("file", name).Info("Migration applied")
	}

	r.logger.WithField("applied", pending).Info("SQL migrations up to date")
	return nil
}

func (r *Runner) apply(name string) error {
	content, err := fs.ReadFile(r.files, name)
	if err != nil {
		return err
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		for i, stmt := range statements(string(content)) {
			r.logger.WithFields(logrus.Fields{
				"file":      path.Base(name),
				"statement": i + 1,
			}).Debug("Executing SQL statement")

			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		return tx.Exec("INSERT INTO schema_migrations (name) VALUES (?)", name).Error
	})
}

// statements drops comment lines and splits on semicolons. A file containing
// dollar quoting is returned whole.
func statements(sql string) []string {
	var kept []string
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	cleaned := strings.TrimSpace(strings.Join(kept, "\n"))

	if strings.Contains(cleaned, "$$") {
		return []string{cleaned}
	}

	var out []string
	for _, stmt := range strings.Split(cleaned, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
