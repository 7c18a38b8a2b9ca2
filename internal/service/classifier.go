package service

import (
	"context"
	"fmt"

	"apgrhost/internal/domain"
	"apgrhost/internal/repository"
	"apgrhost/pkg/logger"
)

// Match reasons reported on classification results
const (
	ReasonFingerprintAndIP = "fingerprint + IP match"
	ReasonFingerprintOnly  = "fingerprint match only"
	ReasonIPOnly           = "IP match only"
	ReasonMissingIdentity  = "missing identity signals"
)

// ClassifierConfig holds the confidence levels assigned to repeat visits
type ClassifierConfig struct {
	// FullMatchConfidence applies when fingerprint and IP both match
	FullMatchConfidence int
	// MismatchConfidence applies when the fingerprint matches but the IP changed
	MismatchConfidence int
	// IPOnlyConfidence applies when the visitor was keyed by IP alone
	IPOnlyConfidence int
}

// DefaultClassifierConfig returns the standard confidence levels
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		FullMatchConfidence: 100,
		MismatchConfidence:  60,
		IPOnlyConfidence:    50,
	}
}

// Validate checks that the levels are percentages and a mismatch never reaches a full match
func (c ClassifierConfig) Validate() error {
	for name, v := range map[string]int{
		"full match confidence": c.FullMatchConfidence,
		"mismatch confidence":   c.MismatchConfidence,
		"IP-only confidence":    c.IPOnlyConfidence,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be within [0,100], got %d", name, v)
		}
	}
	if c.MismatchConfidence >= c.FullMatchConfidence {
		return fmt.Errorf("mismatch confidence (%d) must be below full match confidence (%d)",
			c.MismatchConfidence, c.FullMatchConfidence)
	}
	return nil
}

// Classifier decides whether an observation is a new, repeat or unknown visitor.
// It holds no visitor state; everything lives in the store passed to Classify.
type Classifier struct {
	config ClassifierConfig
	logger *logger.Logger
}

// NewClassifier creates a classifier with the given confidence levels
func NewClassifier(config ClassifierConfig, log *logger.Logger) *Classifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &Classifier{config: config, logger: log}
}

// Classify looks the observation up in store and reports identity continuity.
// It must run before the caller upserts the new record. A failed lookup is
// logged and treated as a new visitor.
func (c *Classifier) Classify(ctx context.Context, store repository.VisitorStore, obs domain.Observation) domain.ClassificationResult {
	key := obs.VisitorKey()
	if key == "" {
		return domain.ClassificationResult{
			Kind:        domain.VisitUnknown,
			MatchReason: ReasonMissingIdentity,
		}
	}

	prior, err := store.Lookup(ctx, key)
	if err != nil {
		c.logger.WithError(err).WithField("visitor_key", key).Warn("Visitor lookup failed, treating as new")
		return domain.ClassificationResult{Kind: domain.VisitNew}
	}
	if prior == nil {
		return domain.ClassificationResult{Kind: domain.VisitNew}
	}

	var confidence int
	var reason string
	switch {
	case obs.HasFingerprint() && prior.IP == obs.IP:
		confidence, reason = c.config.FullMatchConfidence, ReasonFingerprintAndIP
	case obs.HasFingerprint():
		confidence, reason = c.config.MismatchConfidence, ReasonFingerprintOnly
	default:
		confidence, reason = c.config.IPOnlyConfidence, ReasonIPOnly
	}

	result := domain.ClassificationResult{
		Kind:              domain.VisitRepeat,
		ConfidencePercent: &confidence,
		MatchReason:       reason,
	}
	if !prior.LastSeenAt.IsZero() {
		lastSeen := prior.LastSeenAt
		result.LastSeenAt = &lastSeen
	}
	return result
}
