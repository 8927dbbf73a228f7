package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// LedgerMetrics is returned by GET /v1/metrics/summary.
type LedgerMetrics struct {
	TotalRequests   int64   `json:"totalRequests"`
	ErrorRate       float64 `json:"errorRate"`
	CacheHitRate    float64 `json:"cacheHitRate"`
	PeriodsSaved    int64   `json:"periodsSaved"`
	InterestDropped int64   `json:"interestDroppedEvents"`
	StoreErrors     int64   `json:"storeErrors"`
	Period          string  `json:"period"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// SuccessResponse wraps a successful single-entity response. Durable
// reports whether the write reached the backing store; false means the
// change lives in memory only and will be retried on the next save of
// the same document.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
	Durable *bool  `json:"durable,omitempty"`
}
