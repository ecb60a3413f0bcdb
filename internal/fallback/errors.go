package fallback

import (
	"fmt"

	"github.com/ziadkadry99/cverag/internal/cve"
)

// Stage names one step of resolving a missing identifier.
type Stage string

const (
	StageDescribe  Stage = "describe"
	StageRetrieve  Stage = "retrieve"
	StageRecommend Stage = "recommend"
)

// StageError reports which step failed for which identifier.
type StageError struct {
	Stage Stage
	ID    cve.ID
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("fallback %s for %s: %v", e.Stage, e.ID, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
