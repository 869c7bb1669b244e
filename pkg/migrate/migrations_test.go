package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vastralabs/vastra-backend/pkg/migrate"
)

func TestMigrationDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestStockMigrationGuardsNegativeQuantities(t *testing.T) {
	content := readMigration(t, "*_create_stock_records.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS stock_records",
		"variant_id UUID NOT NULL UNIQUE",
		"CHECK (qty_available >= 0)",
		"DROP TABLE IF EXISTS stock_records",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationEnforcesUniqueness(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"order_number TEXT NOT NULL UNIQUE",
		"payment_ref TEXT UNIQUE",
		"CHECK (total_paise >= 0)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
