package repository

import (
	"context"
	"fmt"

	"github.com/TheManchineel/titilda-music/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GenreRepository reads and seeds the genre reference table.
type GenreRepository interface {
	ListGenres(ctx context.Context) ([]model.Genre, error)
	GenreExists(ctx context.Context, name string) (bool, error)
	// SeedGenres inserts the names that are not present yet.
	SeedGenres(ctx context.Context, names []string) error
}

type gormGenreRepository struct {
	db *gorm.DB
}

// NewGormGenreRepository creates a GenreRepository backed by GORM.
func NewGormGenreRepository(db *gorm.DB) GenreRepository {
	return &gormGenreRepository{db: db}
}

func (r *gormGenreRepository) ListGenres(ctx context.Context) ([]model.Genre, error) {
	genres := make([]model.Genre, 0)
	if err := r.db.WithContext(ctx).Order("name").Find(&genres).Error; err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	return genres, nil
}

func (r *gormGenreRepository) GenreExists(ctx context.Context, name string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Genre{}).Where("name = ?", name).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to look up genre %s: %w", name, err)
	}
	return n > 0, nil
}

func (r *gormGenreRepository) SeedGenres(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	genres := make([]model.Genre, 0, len(names))
	for _, name := range names {
		genres = append(genres, model.Genre{Name: name})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&genres).Error
	if err != nil {
		return fmt.Errorf("failed to seed genres: %w", err)
	}
	return nil
}
