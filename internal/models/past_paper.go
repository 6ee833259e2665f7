package models

import "time"

// PastPaper is a downloadable exam paper. Price is in whole KSh.
type PastPaper struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Grade       string    `gorm:"size:50;not null;index" json:"grade"`
	Subject     string    `gorm:"size:100;not null;index" json:"subject"`
	Price       int64     `gorm:"not null" json:"price"`
	FileURL     string    `gorm:"size:512" json:"fileUrl"`
	FileName    string    `gorm:"size:255" json:"fileName"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (PastPaper) TableName() string {
	return "past_papers"
}
