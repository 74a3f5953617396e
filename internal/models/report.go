package models

// ReportRecord is one decoded row of a rank report.
type ReportRecord struct {
	Broker     string  `json:"broker"`
	Bought     float64 `json:"bought"`
	Crossed    float64 `json:"crossed"`
	HighTouch  float64 `json:"high_touch"`
	LowTouch   float64 `json:"low_touch"`
	NumReports int64   `json:"num_reports"`
	Sold       float64 `json:"sold"`
	Total      float64 `json:"total"`
	Traded     float64 `json:"traded"`
}

// ErrorInfo is the error payload the service returns in place of a report.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
