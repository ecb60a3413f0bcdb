package history

import (
	"time"

	"github.com/ziadkadry99/cverag/internal/fallback"
)

// Record is one served prompt request.
type Record struct {
	ID          string                `json:"id"`
	Timestamp   time.Time             `json:"timestamp"`
	Model       string                `json:"model"`
	RAGType     string                `json:"ragType"`
	Prompt      string                `json:"prompt"`
	Identifiers []string              `json:"identifiers"`
	Missing     []string              `json:"missing"`
	Corrections []fallback.Correction `json:"corrections"`
	Chunks      int                   `json:"chunks"`
	Duration    time.Duration         `json:"duration"`
	Error       string                `json:"error,omitempty"`
}
