package models

import "time"

// PeriodRecent tags summaries covering the configured lookback window
const PeriodRecent = "recent"

// Summary sources
const (
	SourceLLM       = "llm"
	SourceHeuristic = "heuristic"
	SourceFallback  = "fallback"
)

// Summary is a generated narrative for one company. History is append-only.
type Summary struct {
	ID          string    `json:"id" db:"id"`
	CompanyID   string    `json:"companyId" db:"company_id"`
	PeriodType  string    `json:"periodType" db:"period_type"`
	Content     string    `json:"content" db:"content"`
	Source      string    `json:"source" db:"source"`
	GeneratedAt time.Time `json:"generatedAt" db:"generated_at"`
}
