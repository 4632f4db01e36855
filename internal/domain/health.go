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
	LastChecked string `json:"lastChecked"`
}

// ChatMetrics is returned by GET /v1/metrics/chat.
type ChatMetrics struct {
	TotalSends       int64   `json:"totalSends"`
	Completed        int64   `json:"completed"`
	Failed           int64   `json:"failed"`
	Cancelled        int64   `json:"cancelled"`
	ErrorRate        float64 `json:"errorRate"`
	ChunksReceived   int64   `json:"chunksReceived"`
	AvgChunksPerSend float64 `json:"avgChunksPerSend"`
	CacheHitRate     float64 `json:"cacheHitRate"`
	Period           string  `json:"period"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
