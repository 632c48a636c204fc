package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serenissima/contracts-gateway/internal/model"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Record(ctx context.Context, entry model.LedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO gateway_ledger (id, building_id, action, contract_id, resource_type, actor, amount, details, created_at)
		VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, NULLIF(?, ''), ?)
	`,
		entry.ID,
		entry.BuildingID,
		string(entry.Action),
		entry.ContractID,
		entry.ResourceType,
		entry.Actor,
		entry.Amount,
		entry.Details,
		entry.CreatedAt,
	).Error
}

// ListByBuilding returns the building's entries, oldest first.
func (r *LedgerRepository) ListByBuilding(ctx context.Context, buildingID string) ([]model.LedgerEntry, error) {
	var rows []struct {
		ID           uuid.UUID
		BuildingID   string
		Action       string
		ContractID   *string
		ResourceType *string
		Actor        string
		Amount       float64
		Details      *string
		CreatedAt    time.Time
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, building_id, action, contract_id, resource_type, actor, amount, details, created_at
		FROM gateway_ledger
		WHERE building_id = ?
		ORDER BY created_at ASC, id ASC
	`, buildingID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]model.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, model.LedgerEntry{
			ID:           row.ID,
			BuildingID:   row.BuildingID,
			Action:       model.LedgerAction(row.Action),
			ContractID:   deref(row.ContractID),
			ResourceType: deref(row.ResourceType),
			Actor:        row.Actor,
			Amount:       row.Amount,
			Details:      deref(row.Details),
			CreatedAt:    row.CreatedAt,
		})
	}
	return entries, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
