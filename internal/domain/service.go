package domain

import (
	"time"
)

// Service represents a vendor-owned service listing.
//
// AvgRating is a derived cache of the review set for this service; the
// reviews table is the source of truth. It is recomputed inside the same
// transaction as every review mutation so the two never diverge.
type Service struct {
	ID          string    `json:"id"`
	VendorID    string    `json:"vendor_id"`
	CategoryID  *string   `json:"category_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	AvgRating   float64   `json:"avg_rating"`
	RatingCount int       `json:"rating_count"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
