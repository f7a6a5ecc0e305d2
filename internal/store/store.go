// Package store persists finished review runs in SQLite.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ppiankov/peerpanel/internal/model"
)

// RunRecord is one reviewed paper under one model and configuration
type RunRecord struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	PaperID      string    `json:"paper_id" gorm:"index"`
	Title        string    `json:"title"`
	Model        string    `json:"model" gorm:"index"`
	ConfigTag    string    `json:"config_tag"`
	Merger       string    `json:"merger"`
	Strengths    int       `json:"strengths"`
	Weaknesses   int       `json:"weaknesses"`
	Suggestions  int       `json:"suggestions"`
	Dropped      int       `json:"dropped"`
	Revisions    int       `json:"revisions"`
	FailedFacets string    `json:"failed_facets"`
	OutputDir    string    `json:"output_dir"`
	ReviewJSON   string    `json:"review_json"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

// NewRecord builds a record for the final review of a paper. The id is a
// fresh UUID.
func NewRecord(paper *model.Paper, modelName, tag string, review model.Review) (*RunRecord, error) {
	data, err := json.Marshal(review)
	if err != nil {
		return nil, fmt.Errorf("marshal review: %w", err)
	}
	return &RunRecord{
		ID:          uuid.NewString(),
		PaperID:     paper.ID,
		Title:       paper.Title,
		Model:       modelName,
		ConfigTag:   tag,
		Strengths:   len(review.Strengths),
		Weaknesses:  len(review.Weaknesses),
		Suggestions: len(review.Suggestions),
		ReviewJSON:  string(data),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// SetFailedFacets records the facets whose agents failed
func (r *RunRecord) SetFailedFacets(facets []model.Facet) {
	names := make([]string, len(facets))
	for i, f := range facets {
		names[i] = string(f)
	}
	r.FailedFacets = strings.Join(names, ",")
}

// Review decodes the stored review
func (r *RunRecord) Review() (model.Review, error) {
	var review model.Review
	if err := json.Unmarshal([]byte(r.ReviewJSON), &review); err != nil {
		return model.Review{}, fmt.Errorf("decode review %s: %w", r.ID, err)
	}
	return review, nil
}

// ListOptions filters List. Zero values match everything.
type ListOptions struct {
	PaperID string
	Model   string
	Limit   int
}

// Store saves and lists run records
type Store interface {
	Save(ctx context.Context, rec *RunRecord) error
	List(ctx context.Context, opts ListOptions) ([]RunRecord, error)
	Close() error
}

// SQLiteStore is a Store backed by a SQLite file through gorm
type SQLiteStore struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database at path and migrates it
func Open(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save inserts rec, assigning an id and timestamp when missing
func (s *SQLiteStore) Save(ctx context.Context, rec *RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("save run %s: %w", rec.PaperID, err)
	}
	return nil
}

// List returns matching records, newest first
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]RunRecord, error) {
	query := s.db.WithContext(ctx).Model(&RunRecord{})
	if opts.PaperID != "" {
		query = query.Where("paper_id = ?", opts.PaperID)
	}
	if opts.Model != "" {
		query = query.Where("model = ?", opts.Model)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var records []RunRecord
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return records, nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
