// Package detect implements the recurring-payment detection pipeline: grouping
// raw payment events into candidates, classifying their cadence, scoring
// confidence, and deduplicating detections across sources and repeated scans.
// Everything in this package is pure computation over in-memory data; callers
// own all I/O.
package detect

// Config holds the tunable constants of the detection pipeline. The defaults
// are the legacy heuristic values carried over unchanged; they are exposed as
// configuration so behavior stays reproducible rather than buried as magic
// numbers.
type Config struct {
	// AmountTolerance is the relative tolerance used when bucketing amounts
	// into candidate groups and when matching amounts during deduplication.
	AmountTolerance float64

	// WideSpreadTolerance is the relative spread between any two amounts in a
	// group beyond which the scorer applies WideSpreadPenalty.
	WideSpreadTolerance float64

	// NameMatchThreshold is the minimum name similarity for two merchants to
	// be considered the same subscription.
	NameMatchThreshold float64

	// MaxBatchSize caps a single run. Larger batches fail fast rather than
	// degrade silently; the caller should re-chunk.
	MaxBatchSize int

	// SampleBoostMin is the event count at which SampleBoost applies.
	SampleBoostMin int

	SampleBoost       float64
	WideSpreadPenalty float64

	// Source reliability multipliers. Bank data is structured and keeps the
	// full score; email and SMS extraction are lossier.
	EmailReliability float64
	SMSReliability   float64

	ConfidenceCap   float64
	ConfidenceFloor float64
}

// DefaultConfig returns the legacy detection constants.
func DefaultConfig() Config {
	return Config{
		AmountTolerance:     0.10,
		WideSpreadTolerance: 0.15,
		NameMatchThreshold:  0.82,
		MaxBatchSize:        5000,
		SampleBoostMin:      4,
		SampleBoost:         0.05,
		WideSpreadPenalty:   0.15,
		EmailReliability:    0.95,
		SMSReliability:      0.90,
		ConfidenceCap:       0.99,
		ConfidenceFloor:     0.05,
	}
}
