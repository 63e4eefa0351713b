package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/scholchat/scholchat-api/internal/models"
	appErrors "github.com/scholchat/scholchat-api/pkg/errors"
)

const (
	courseTitleCacheKey  = "lookup:course:%s"
	classDetailsCacheKey = "lookup:class:%s"
)

// DirectoryService resolves display names for listings, read-through cached.
// Roster membership checks must not go through it.
type DirectoryService struct {
	catalog courseCatalog
	classes classDirectory
	cache   *CacheService
	logger  *zap.Logger
}

// NewDirectoryService builds a DirectoryService. cache may be nil.
func NewDirectoryService(catalog courseCatalog, classes classDirectory, cache *CacheService, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{catalog: catalog, classes: classes, cache: cache, logger: logger}
}

// CourseTitle returns the catalog title of a course.
func (s *DirectoryService) CourseTitle(ctx context.Context, courseID string) (string, error) {
	key := fmt.Sprintf(courseTitleCacheKey, courseID)
	var cached models.Course
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Title, nil
	}

	course, err := s.catalog.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return "", err
	}
	_ = s.cache.Set(ctx, key, course, 0)
	return course.Title, nil
}

// ClassDetails returns a class with its establishment name.
func (s *DirectoryService) ClassDetails(ctx context.Context, classID string) (*models.ClassDetails, error) {
	key := fmt.Sprintf(classDetailsCacheKey, classID)
	var cached models.ClassDetails
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	details, err := s.classes.FindDetails(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, err
	}
	_ = s.cache.Set(ctx, key, details, 0)
	return details, nil
}
