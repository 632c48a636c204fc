package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/serenissima/contracts-gateway/internal/model"
)

type ResponseRepository struct {
	db *gorm.DB
}

func NewResponseRepository(db *gorm.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// Save stores the answer to an offer. The first answer wins; a later one is ignored and
// reported as not inserted.
func (r *ResponseRepository) Save(ctx context.Context, resp model.OfferResponse) (bool, error) {
	createdAt := resp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	result := r.db.WithContext(ctx).Exec(`
		INSERT INTO offer_response (message_id, response, responded_by, response_message_id, created_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?)
		ON CONFLICT (message_id) DO NOTHING
	`, resp.MessageID, string(resp.Response), resp.RespondedBy, resp.ResponseMessageID, createdAt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete releases a claim whose response message never reached the backend.
func (r *ResponseRepository) Delete(ctx context.Context, messageID string) error {
	return r.db.WithContext(ctx).Exec(`
		DELETE FROM offer_response
		WHERE message_id = ? AND response_message_id IS NULL
	`, messageID).Error
}

func (r *ResponseRepository) AttachResponseMessage(ctx context.Context, messageID, responseMessageID string) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE offer_response
		SET response_message_id = ?
		WHERE message_id = ?
	`, responseMessageID, messageID).Error
}

func (r *ResponseRepository) ListByMessageIDs(ctx context.Context, ids []string) (map[string]model.OfferResponse, error) {
	out := make(map[string]model.OfferResponse, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []struct {
		MessageID         string
		Response          string
		RespondedBy       string
		ResponseMessageID *string
		CreatedAt         time.Time
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT message_id, response, responded_by, response_message_id, created_at
		FROM offer_response
		WHERE message_id IN ?
	`, ids).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		resp := model.OfferResponse{
			MessageID:   row.MessageID,
			Response:    model.OfferResponseKind(row.Response),
			RespondedBy: row.RespondedBy,
			CreatedAt:   row.CreatedAt,
		}
		if row.ResponseMessageID != nil {
			resp.ResponseMessageID = *row.ResponseMessageID
		}
		out[row.MessageID] = resp
	}
	return out, nil
}
