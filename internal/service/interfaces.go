package service

import (
	"context"

	"apgrhost/internal/domain"
)

// GeoLocator resolves IP addresses to geolocation metadata
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) (*domain.IPInfo, error)
}

// VisitorService handles inbound visit observations
type VisitorService interface {
	// Collect classifies, scores, stores and reports one observation
	Collect(ctx context.Context, req *CollectRequest) (*CollectResult, error)

	// Stats returns the number of distinct visitors
	Stats(ctx context.Context) (*VisitorStats, error)

	// Visitors returns every stored visit record
	Visitors(ctx context.Context) ([]*domain.VisitRecord, error)
}
