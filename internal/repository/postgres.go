package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/repository/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresCallHistoryRepository struct {
	db *gorm.DB
}

func NewPostgresCallHistoryRepository(db *gorm.DB) *PostgresCallHistoryRepository {
	return &PostgresCallHistoryRepository{db: db}
}

func (r *PostgresCallHistoryRepository) Save(ctx context.Context, record *domain.CallRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil {
		return ErrRecordNil
	}
	if record.UserID == "" {
		return ErrInvalidUserID
	}

	row, err := toModelCallRecord(record)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"end_time", "duration", "participants", "updated_at"}),
	}).Create(row).Error
}

func (r *PostgresCallHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.CallRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.CallRecord, 0, len(rows))
	for i := range rows {
		record, err := toDomainCallRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, nil
}

func toModelCallRecord(record *domain.CallRecord) (*model.CallRecord, error) {
	participants, err := json.Marshal(record.Participants)
	if err != nil {
		return nil, err
	}

	var endTime *time.Time
	if record.EndTime != nil {
		t := record.EndTime.UTC()
		endTime = &t
	}

	return &model.CallRecord{
		ID:           record.ID,
		UserID:       record.UserID,
		RoomID:       record.RoomID,
		Type:         string(record.Type),
		StartTime:    record.StartTime.UTC(),
		EndTime:      endTime,
		Duration:     record.Duration,
		Participants: string(participants),
	}, nil
}

func toDomainCallRecord(row *model.CallRecord) (*domain.CallRecord, error) {
	participants := []string{}
	if row.Participants != "" {
		if err := json.Unmarshal([]byte(row.Participants), &participants); err != nil {
			return nil, err
		}
	}

	var endTime *time.Time
	if row.EndTime != nil {
		t := row.EndTime.UTC()
		endTime = &t
	}

	return &domain.CallRecord{
		ID:           row.ID,
		UserID:       row.UserID,
		RoomID:       row.RoomID,
		Type:         domain.CallType(row.Type),
		StartTime:    row.StartTime.UTC(),
		EndTime:      endTime,
		Duration:     row.Duration,
		Participants: participants,
	}, nil
}
