package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a stock-keeping item belonging to exactly one category
type Product struct {
	ID         uint            `json:"id" gorm:"primarykey"`
	Name       string          `json:"name" gorm:"type:varchar(255);not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Quantity   int             `json:"quantity" gorm:"not null;default:0;index"`
	CategoryID uint            `json:"category_id" gorm:"index;not null"`
	Expired    bool            `json:"expired" gorm:"not null;default:false;index"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`

	// Relations
	Category *Category      `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Images   []ProductImage `json:"images,omitempty" gorm:"foreignKey:ProductID"`
}

// ProductImage links a product to one blob inside its image folder.
// ImagePath is relative to the product image namespace: {folder}/{blob name}.
type ProductImage struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	ProductID uint      `json:"product_id" gorm:"index;not null"`
	ImagePath string    `json:"image_path" gorm:"type:varchar(512);not null"`
	ImageURL  string    `json:"image_url,omitempty" gorm:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
