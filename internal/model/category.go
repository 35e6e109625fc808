package model

import (
	"time"
)

// Category groups products and optionally carries a single image
type Category struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	ImagePath string    `json:"image_path,omitempty" gorm:"type:varchar(512)"`
	ImageURL  string    `json:"image_url,omitempty" gorm:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Only computed by the top-categories query; zero elsewhere
	ProductCount int64 `json:"product_count" gorm:"->;-:migration"`
}
