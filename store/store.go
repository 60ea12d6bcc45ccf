package store

import (
	"context"

	"github.com/gofrs/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/rajdeep-singha/sXLM/core"
	"github.com/rajdeep-singha/sXLM/queue"
)

// Store persists positions and withdrawal requests in sqlite through gorm.
type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&positionRecord{}, &requestRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

type positionRecord struct {
	AccountId  string `gorm:"column:account_id;primaryKey"`
	Collateral string `gorm:"column:collateral"`
	Debt       string `gorm:"column:debt"`
	LastUpdate int64  `gorm:"column:last_update"`
}

func (positionRecord) TableName() string { return "positions" }

type requestRecord struct {
	Id        uint64 `gorm:"column:id;primaryKey"`
	AccountId string `gorm:"column:account_id;index"`
	Amount    string `gorm:"column:amount"`
	Status    uint8  `gorm:"column:status;index"`
	CreatedAt int64  `gorm:"column:created_at"`
	UnlockAt  int64  `gorm:"column:unlock_at"`
}

func (requestRecord) TableName() string { return "withdrawal_requests" }

func (s *Store) FindPosition(ctx context.Context, accountId uuid.UUID) (*core.Position, error) {
	var record positionRecord
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountId.String()).
		First(&record).Error; err != nil {
		return nil, err
	}
	return record.toPosition()
}

func (s *Store) UpsertPosition(ctx context.Context, position *core.Position) error {
	record := positionRecord{
		AccountId:  position.AccountId.String(),
		Collateral: position.Collateral.String(),
		Debt:       position.Debt.String(),
		LastUpdate: position.LastUpdate,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			UpdateAll: true,
		}).
		Create(&record).Error
}

func (s *Store) ListPositions(ctx context.Context) ([]*core.Position, error) {
	var records []positionRecord
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, err
	}

	positions := make([]*core.Position, 0, len(records))
	for _, record := range records {
		position, err := record.toPosition()
		if err != nil {
			return nil, err
		}
		positions = append(positions, position)
	}
	return positions, nil
}

func (s *Store) FindRequest(ctx context.Context, id uint64) (*queue.Request, error) {
	var record requestRecord
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&record).Error; err != nil {
		return nil, err
	}
	return record.toRequest()
}

func (s *Store) UpsertRequest(ctx context.Context, request *queue.Request) error {
	record := requestRecord{
		Id:        request.Id,
		AccountId: request.AccountId.String(),
		Amount:    request.Amount.String(),
		Status:    uint8(request.Status),
		CreatedAt: request.CreatedAt,
		UnlockAt:  request.UnlockAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&record).Error
}

func (s *Store) ListRequestsByAccount(ctx context.Context, accountId uuid.UUID) ([]*queue.Request, error) {
	var records []requestRecord
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountId.String()).
		Order("id asc").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return toRequests(records)
}

func (s *Store) ListRequestsByStatus(ctx context.Context, status queue.Status) ([]*queue.Request, error) {
	var records []requestRecord
	if err := s.db.WithContext(ctx).
		Where("status = ?", uint8(status)).
		Order("id asc").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return toRequests(records)
}

func (s *Store) CountRequests(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&requestRecord{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) MaxRequestId(ctx context.Context) (uint64, error) {
	var maxId *uint64
	if err := s.db.WithContext(ctx).
		Model(&requestRecord{}).
		Select("max(id)").
		Scan(&maxId).Error; err != nil {
		return 0, err
	}
	if maxId == nil {
		return 0, nil
	}
	return *maxId, nil
}
