package config

import (
	"log"

	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/core/domain"
	"edhub/internal/pkg/password"
)

// Seeder handles database seeding
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedAdminUser(); err != nil {
		log.Printf("⚠️ Admin seeder skipped: %v", err)
	}
	if err := s.seedSampleCatalog(); err != nil {
		log.Printf("⚠️ Catalog seeder skipped: %v", err)
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedAdminUser seeds default admin user
// This is for development/testing only
// In production, create admin through secure process
func (s *Seeder) seedAdminUser() error {
	var count int64
	s.db.Model(&models.User{}).Where("role = ?", string(domain.RoleAdmin)).Count(&count)
	if count > 0 {
		return nil // Admin already exists
	}

	hashedPassword, err := password.Hash("admin123456")
	if err != nil {
		return err
	}

	admin := &models.User{
		Name:        "Administrator",
		Email:       "admin@edhub.app",
		PhoneNumber: "01000000000",
		Password:    hashedPassword,
		Role:        string(domain.RoleAdmin),
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Admin user created: %s", admin.Email)
	return nil
}

// seedSampleCatalog seeds one free course so a fresh dev install has
// something to enroll into
func (s *Seeder) seedSampleCatalog() error {
	var count int64
	s.db.Model(&models.Course{}).Count(&count)
	if count > 0 {
		return nil // Catalog already populated
	}

	course := &models.Course{
		Name:          "Getting Started",
		Description:   "Introductory course seeded for development",
		IsFree:        true,
		Level:         "الصف الأول الثانوي",
		IsDraft:       false,
		PublishStatus: string(domain.PublishPublished),
	}

	if err := s.db.Create(course).Error; err != nil {
		return err
	}

	log.Printf("✅ Sample course created: %s", course.Name)
	return nil
}
