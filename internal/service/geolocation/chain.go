package geolocation

import (
	"context"
	"errors"
	"fmt"

	"apgrhost/internal/domain"
	apperrors "apgrhost/pkg/errors"
	"apgrhost/pkg/logger"
	"apgrhost/pkg/utils"
)

// Chain asks each provider in order and returns the first answer.
// Successful answers are cached per IP.
type Chain struct {
	providers []Provider
	cache     Cache
	logger    *logger.Logger
}

// NewChain creates a chain; cache may be nil to disable caching
func NewChain(providers []Provider, cache Cache, log *logger.Logger) *Chain {
	if log == nil {
		log = logger.NewNop()
	}
	return &Chain{providers: providers, cache: cache, logger: log}
}

// Lookup resolves ip. Non-public addresses are not sent to providers.
// When every provider fails the result is an external error wrapping ErrNoData
// and each provider's failure.
func (c *Chain) Lookup(ctx context.Context, ip string) (*domain.IPInfo, error) {
	if !utils.IsPublicIP(ip) {
		return nil, fmt.Errorf("%w: %q is not a public address", ErrNoData, ip)
	}

	if c.cache != nil {
		if info, ok := c.cache.Get(ctx, ip); ok {
			info.Cached = true
			return info, nil
		}
	}

	errs := []error{ErrNoData}
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		info, err := p.Lookup(ctx, ip)
		if err != nil {
			c.logger.WithError(err).WithField("provider", p.Name()).Debug("Geolocation provider failed")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}

		info.Cached = false
		if c.cache != nil {
			c.cache.Set(ctx, ip, info)
		}
		return info, nil
	}

	return nil, apperrors.NewExternalError("Geolocation providers failed", errors.Join(errs...))
}
