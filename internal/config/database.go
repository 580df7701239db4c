package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			role VARCHAR(10) NOT NULL DEFAULT 'user',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create balances table (one row per user, created lazily)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS balances (
			user_id VARCHAR(36) PRIMARY KEY,
			admin_balance DOUBLE PRECISION NOT NULL DEFAULT 0,
			mining_balance DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_balance DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_updated TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create machines catalog table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS machines (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			hashrate VARCHAR(64) NOT NULL,
			power_consumption DOUBLE PRECISION NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			coins_mined VARCHAR(255) NOT NULL DEFAULT '',
			monthly_profit DOUBLE PRECISION NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			share_based BOOLEAN NOT NULL DEFAULT FALSE,
			share_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_shares INTEGER NOT NULL DEFAULT 0,
			available_shares INTEGER NOT NULL DEFAULT 0,
			profit_per_share DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create unit_holdings table (machine terms denormalized at purchase)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS unit_holdings (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id),
			machine_id VARCHAR(36) NOT NULL,
			machine_name VARCHAR(255) NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			monthly_profit DOUBLE PRECISION NOT NULL,
			power_consumption DOUBLE PRECISION NOT NULL,
			hashrate VARCHAR(64) NOT NULL,
			status VARCHAR(10) NOT NULL,
			accrued_profit DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_accrual_at TIMESTAMP NOT NULL,
			assigned_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create share_holdings table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS share_holdings (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id),
			machine_id VARCHAR(36) NOT NULL REFERENCES machines(id),
			share_count INTEGER NOT NULL,
			price_per_share DOUBLE PRECISION NOT NULL,
			profit_per_share DOUBLE PRECISION NOT NULL,
			total_investment DOUBLE PRECISION NOT NULL,
			total_profit_earned DOUBLE PRECISION NOT NULL DEFAULT 0,
			status VARCHAR(10) NOT NULL,
			last_accrual_at TIMESTAMP NOT NULL,
			purchased_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create transactions table (append-only audit log)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id),
			amount DOUBLE PRECISION NOT NULL,
			kind VARCHAR(20) NOT NULL,
			status VARCHAR(10) NOT NULL,
			balance_before DOUBLE PRECISION NOT NULL,
			balance_after DOUBLE PRECISION NOT NULL,
			machine_id VARCHAR(36) NOT NULL DEFAULT '',
			machine_name VARCHAR(255) NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL DEFAULT 0,
			price_per_unit DOUBLE PRECISION NOT NULL DEFAULT 0,
			periods INTEGER NOT NULL DEFAULT 0,
			detail TEXT NOT NULL DEFAULT '',
			admin_comment TEXT NOT NULL DEFAULT '',
			processed_by VARCHAR(36) NOT NULL DEFAULT '',
			processed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_unit_holdings_user ON unit_holdings(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_unit_holdings_status ON unit_holdings(status)",
		"CREATE INDEX IF NOT EXISTS idx_share_holdings_user ON share_holdings(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_share_holdings_machine ON share_holdings(machine_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_kind_status ON transactions(kind, status)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
