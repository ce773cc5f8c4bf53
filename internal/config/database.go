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

	// Install the change-notification triggers the realtime feed relies on
	if err := createChangeTriggers(db); err != nil {
		return nil, fmt.Errorf("failed to create change triggers: %w", err)
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
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create profiles table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			id VARCHAR(36) PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			username VARCHAR(255),
			services TEXT[] NOT NULL DEFAULT '{}',
			avatar_url TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create time_transactions table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS time_transactions (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			recipient_id VARCHAR(36) REFERENCES users(id),
			offer_id VARCHAR(36),
			type VARCHAR(10) NOT NULL CHECK (type IN ('earned', 'spent')),
			amount NUMERIC(10, 2) NOT NULL CHECK (amount > 0),
			service_type VARCHAR(100) NOT NULL,
			description TEXT NOT NULL,
			status VARCHAR(20) NOT NULL CHECK (status IN ('open', 'in_progress', 'accepted', 'declined')),
			created_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)
	`)
	if err != nil {
		return err
	}

	// Create time_balances table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS time_balances (
			id VARCHAR(36) PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			balance NUMERIC(10, 2) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_time_transactions_status ON time_transactions(status)",
		"CREATE INDEX IF NOT EXISTS idx_time_transactions_user ON time_transactions(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_time_transactions_recipient ON time_transactions(recipient_id)",
		"CREATE INDEX IF NOT EXISTS idx_time_transactions_offer ON time_transactions(offer_id)",
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

// createChangeTriggers installs a row trigger on each watched table that
// publishes the change as JSON on the time_crafting_changes NOTIFY channel.
// The payload shape matches models.ParseChangeEvent.
func createChangeTriggers(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE OR REPLACE FUNCTION notify_time_crafting_change() RETURNS trigger AS $$
		DECLARE
			payload jsonb;
		BEGIN
			IF TG_OP = 'DELETE' THEN
				payload = jsonb_build_object('op', TG_OP, 'table', TG_TABLE_NAME, 'old', to_jsonb(OLD));
			ELSIF TG_OP = 'INSERT' THEN
				payload = jsonb_build_object('op', TG_OP, 'table', TG_TABLE_NAME, 'new', to_jsonb(NEW));
			ELSE
				payload = jsonb_build_object('op', TG_OP, 'table', TG_TABLE_NAME, 'new', to_jsonb(NEW), 'old', to_jsonb(OLD));
			END IF;
			PERFORM pg_notify('time_crafting_changes', payload::text);
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql
	`)
	if err != nil {
		return err
	}

	for _, table := range []string{"time_transactions", "time_balances"} {
		_, err = db.Exec(fmt.Sprintf(
			`DROP TRIGGER IF EXISTS %s_notify ON %s`, table, table))
		if err != nil {
			return err
		}
		_, err = db.Exec(fmt.Sprintf(
			`CREATE TRIGGER %s_notify
			AFTER INSERT OR UPDATE OR DELETE ON %s
			FOR EACH ROW EXECUTE FUNCTION notify_time_crafting_change()`, table, table))
		if err != nil {
			return err
		}
	}

	return nil
}
