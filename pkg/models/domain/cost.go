package domain

// CostBreakdown is the current monthly cost of one resource's configuration.
type CostBreakdown struct {
	StorageMonthly   float64 `json:"storage_monthly"`
	IngestionMonthly float64 `json:"ingestion_monthly"`
	TotalMonthly     float64 `json:"total_monthly"`
}

// Optimization is the simulated post-remediation configuration and cost.
// Savings is current minus optimized and is never negative; a negative
// pre-clamp value indicates a modeling bug and is logged upstream.
type Optimization struct {
	RecommendedRetentionDays int32   `json:"recommended_retention_days"`
	OptimizedMonthly         float64 `json:"optimized_monthly"`
	Savings                  float64 `json:"savings"`
}
