package database

import (
	"errors"

	"pastpapers/config"
	"pastpapers/internal/domain"
	"pastpapers/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedAdmin creates the admin account from config when it does not exist yet.
// Nothing is seeded unless ADMIN_EMAIL and ADMIN_PASSWORD are set.
func SeedAdmin(db *gorm.DB, cfg *config.AdminConfig, log *zap.Logger) error {
	if cfg.Email == "" || cfg.Password == "" {
		log.Info("admin seed skipped: ADMIN_EMAIL or ADMIN_PASSWORD not set")
		return nil
	}
	var existing models.User
	err := db.Where("email = ? OR username = ?", cfg.Email, cfg.Username).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := &models.User{
		Username:     cfg.Username,
		Email:        cfg.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}
	log.Info("admin user seeded", zap.String("username", admin.Username))
	return nil
}

var samplePapers = []models.PastPaper{
	{Title: "Grade 3 Mathematics Term 2 2023", Description: "Complete term 2 mathematics paper with marking scheme", Grade: "Grade 3", Subject: "Mathematics", Price: 120, FileName: "grade3-math-t2-2023.pdf"},
	{Title: "Grade 4 English Term 1 2023", Description: "English comprehension and composition paper", Grade: "Grade 4", Subject: "English", Price: 150, FileName: "grade4-english-t1-2023.pdf"},
	{Title: "Grade 5 Science Term 3 2023", Description: "Science and technology end of term paper", Grade: "Grade 5", Subject: "Science", Price: 150, FileName: "grade5-science-t3-2023.pdf"},
	{Title: "Grade 6 Kiswahili Term 2 2023", Description: "Kiswahili lugha na insha", Grade: "Grade 6", Subject: "Kiswahili", Price: 180, FileName: "grade6-kiswahili-t2-2023.pdf"},
	{Title: "Grade 7 Social Studies Term 1 2024", Description: "Social studies paper with answers", Grade: "Grade 7", Subject: "Social Studies", Price: 200, FileName: "grade7-social-t1-2024.pdf"},
}

// SeedPapers fills an empty catalog with sample papers.
func SeedPapers(db *gorm.DB, log *zap.Logger) error {
	var count int64
	if err := db.Model(&models.PastPaper{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	papers := make([]models.PastPaper, len(samplePapers))
	copy(papers, samplePapers)
	if err := db.Create(&papers).Error; err != nil {
		return err
	}
	log.Info("sample papers seeded", zap.Int("count", len(papers)))
	return nil
}
