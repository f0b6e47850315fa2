package infra

import (
	"fmt"

	"almacenpos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate for
// every ledger table, then applies the idempotent SQL patches that GORM cannot
// express (sequences, partial indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates the schema. Safe to call on every start.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Usuario{},
		&model.Producto{},
		&model.Cliente{},
		&model.MovimientoCliente{},
		&model.Turno{},
		&model.GastoTurno{},
		&model.Venta{},
		&model.VentaItem{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// handle on its own. Each statement uses IF NOT EXISTS semantics so re-running
// on an already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// Ticket numbers come from a sequence so concurrent sales never collide.
		// nextval is not transactional: a rolled back sale leaves a gap.
		{"ticket sequence",
			`CREATE SEQUENCE IF NOT EXISTS ventas_numero_ticket_seq START 1`},

		// At most one open shift per seller.
		{"one open shift per seller", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_turnos_vendedor_abierto') THEN
    CREATE UNIQUE INDEX idx_turnos_vendedor_abierto
        ON turnos (vendedor_id)
        WHERE estado = 'abierto';
  END IF;
END $$`},

		// Covers the unpaid-clients listing.
		{"clients with balance", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_clientes_con_saldo') THEN
    CREATE INDEX idx_clientes_con_saldo
        ON clientes (nombre)
        WHERE saldo > 0;
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
