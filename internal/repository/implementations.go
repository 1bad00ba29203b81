package repository

import (
	"errors"

	"github.com/Ayash-Bera/felicity/internal/models"
	"gorm.io/gorm"
)

const maxRecentLimit = 100

// QueryRecordRepositoryImpl implements QueryRecordRepository
type QueryRecordRepositoryImpl struct {
	db *gorm.DB
}

func NewQueryRecordRepository(db *gorm.DB) models.QueryRecordRepository {
	return &QueryRecordRepositoryImpl{db: db}
}

func (r *QueryRecordRepositoryImpl) Create(record *models.QueryRecord) error {
	return r.db.Create(record).Error
}

func (r *QueryRecordRepositoryImpl) GetRecent(limit int) ([]models.QueryRecord, error) {
	if limit <= 0 || limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	var records []models.QueryRecord
	err := r.db.Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *QueryRecordRepositoryImpl) GetBySession(sessionID string) ([]models.QueryRecord, error) {
	var records []models.QueryRecord
	err := r.db.Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

// GetByAnswerID returns nil without error when no query produced the id.
func (r *QueryRecordRepositoryImpl) GetByAnswerID(answerFeedbackID string) (*models.QueryRecord, error) {
	var record models.QueryRecord
	err := r.db.Where("answer_feedback_id = ?", answerFeedbackID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FeedbackRecordRepositoryImpl implements FeedbackRecordRepository
type FeedbackRecordRepositoryImpl struct {
	db *gorm.DB
}

func NewFeedbackRecordRepository(db *gorm.DB) models.FeedbackRecordRepository {
	return &FeedbackRecordRepositoryImpl{db: db}
}

func (r *FeedbackRecordRepositoryImpl) Create(record *models.FeedbackRecord) error {
	return r.db.Create(record).Error
}

func (r *FeedbackRecordRepositoryImpl) GetByAnswerID(answerFeedbackID string) ([]models.FeedbackRecord, error) {
	var records []models.FeedbackRecord
	err := r.db.Where("answer_feedback_id = ?", answerFeedbackID).
		Order("created_at").
		Find(&records).Error
	return records, err
}

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	QueryRecord    models.QueryRecordRepository
	FeedbackRecord models.FeedbackRecordRepository
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		QueryRecord:    NewQueryRecordRepository(db),
		FeedbackRecord: NewFeedbackRecordRepository(db),
	}
}
