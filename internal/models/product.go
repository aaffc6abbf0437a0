package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultCategories are offered by the admin product form when no category is given.
var DefaultCategories = []string{"LUTs", "Presets", "Templates", "Sound Effects", "Overlays"}

type Product struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name              string    `json:"name" gorm:"not null"`
	Description       string    `json:"description"`
	Price             float64   `json:"price" gorm:"default:0"`
	Category          string    `json:"category"`
	ImageURL          string    `json:"image_url" gorm:"column:image_url"`
	FilePathInStorage string    `json:"file_path_in_storage" gorm:"column:file_path_in_storage"`
	IsFree            bool      `json:"is_free" gorm:"default:false"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// AmountInPaise converts the rupee price to the gateway's smallest unit.
func (p *Product) AmountInPaise() int64 {
	return int64(p.Price*100 + 0.5)
}
