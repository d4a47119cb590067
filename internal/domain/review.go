package domain

import (
	"time"
)

// Review represents a customer's rating and comment for a service.
type Review struct {
	ID         string    `json:"id"`
	ServiceID  string    `json:"service_id"`
	CustomerID string    `json:"customer_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ReviewSummary contains the recomputed aggregate for a service's review set.
type ReviewSummary struct {
	AvgRating    float64 `json:"avg_rating"`
	TotalReviews int     `json:"total_reviews"`
}
