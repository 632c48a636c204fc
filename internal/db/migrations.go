package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`CREATE TABLE IF NOT EXISTS offer_response (
		message_id VARCHAR(128) PRIMARY KEY,
		response VARCHAR(16) NOT NULL,
		responded_by VARCHAR(128) NOT NULL,
		response_message_id VARCHAR(128),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'offer_response_kind_check') THEN
			ALTER TABLE offer_response ADD CONSTRAINT offer_response_kind_check
				CHECK (response IN ('accepted', 'refused'));
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS gateway_ledger (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		building_id VARCHAR(128) NOT NULL,
		action VARCHAR(32) NOT NULL,
		contract_id VARCHAR(256),
		resource_type VARCHAR(128),
		actor VARCHAR(128) NOT NULL,
		amount NUMERIC(18,4) NOT NULL DEFAULT 0,
		details TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_gateway_ledger_building ON gateway_ledger (building_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_gateway_ledger_actor ON gateway_ledger (actor);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
