package reconcile

// Thresholds are the tunable limits of the reconciliation policy.
type Thresholds struct {
	// DistanceMeters is the largest operator/geocode disagreement still
	// treated as confirmation.
	DistanceMeters float64 `yaml:"distance_meters" mapstructure:"distance_meters"`
	// MinScore is the best-match floor; a best score equal to it is rejected.
	MinScore float64 `yaml:"min_score" mapstructure:"min_score"`
	// AcceptScore is the score at which a forward match is accepted on its own.
	AcceptScore float64 `yaml:"accept_score" mapstructure:"accept_score"`
	// HighScore marks a forward or reverse match as high confidence.
	HighScore float64 `yaml:"high_score" mapstructure:"high_score"`
}

// DefaultThresholds returns the production policy limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DistanceMeters: 100,
		MinScore:       0.3,
		AcceptScore:    0.5,
		HighScore:      0.8,
	}
}

// withDefaults fills non-positive fields from DefaultThresholds.
func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.DistanceMeters <= 0 {
		t.DistanceMeters = d.DistanceMeters
	}
	if t.MinScore <= 0 {
		t.MinScore = d.MinScore
	}
	if t.AcceptScore <= 0 {
		t.AcceptScore = d.AcceptScore
	}
	if t.HighScore <= 0 {
		t.HighScore = d.HighScore
	}
	return t
}
