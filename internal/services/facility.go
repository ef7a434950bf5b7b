package services

import (
	"context"
	"errors"

	"amc-booking/internal/models"

	"gorm.io/gorm"
)

// FacilityService is the read side of the facility catalogue.
type FacilityService struct {
	db *gorm.DB
}

func NewFacilityService(db *gorm.DB) *FacilityService {
	return &FacilityService{db: db}
}

// List returns bookable facilities ordered by name
func (s *FacilityService) List(ctx context.Context) ([]models.Facility, error) {
	var facilities []models.Facility
	if err := s.db.WithContext(ctx).
		Where("is_available = ?", true).
		Order("name ASC").
		Find(&facilities).Error; err != nil {
		return nil, internalError("Failed to load facilities", err)
	}
	return facilities, nil
}

func (s *FacilityService) Get(ctx context.Context, id uint) (*models.Facility, error) {
	var f models.Facility
	if err := s.db.WithContext(ctx).First(&f, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, withMessage(ErrNotFound, "Facility not found")
		}
		return nil, internalError("Failed to load facility", err)
	}
	return &f, nil
}

// SeedDefaults inserts the standard facilities when none exist.
func (s *FacilityService) SeedDefaults(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Facility{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []models.Facility{
		{Name: "Main Auditorium", Location: "Building A, Ground Floor", Description: "Large hall for events and assemblies", IsAvailable: true},
		{Name: "Computer Lab 1", Location: "Building B, 2nd Floor", Description: "40 workstations with projector", IsAvailable: true},
		{Name: "Conference Room", Location: "Admin Block, 1st Floor", Description: "Meeting room for up to 20 people", IsAvailable: true},
		{Name: "Sports Hall", Location: "Sports Complex", Description: "Indoor court for sports activities", IsAvailable: true},
		{Name: "Library Study Room", Location: "Library, 3rd Floor", Description: "Quiet group study room", IsAvailable: true},
	}
	return s.db.WithContext(ctx).Create(&defaults).Error
}
