package domain

import "time"

// RefreshStatus is the state of a refresh job
type RefreshStatus string

const (
	RefreshRunning    RefreshStatus = "running"
	RefreshCompleted  RefreshStatus = "completed"
	RefreshFailed     RefreshStatus = "failed"
	RefreshCancelled  RefreshStatus = "cancelled"
	RefreshSuperseded RefreshStatus = "superseded"
)

// RefreshJob describes one pass of the observation source over the matrix
type RefreshJob struct {
	ID          string        `json:"id"`
	Status      RefreshStatus `json:"status"`
	BaseVersion uint64        `json:"baseVersion"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Updated     int           `json:"updated"`
	Failed      int           `json:"failed"`
	Error       string        `json:"error,omitempty"`
}

// Partial reports whether a completed refresh left some cells unrefreshed
func (j RefreshJob) Partial() bool {
	return j.Status == RefreshCompleted && j.Failed > 0
}

// Done reports whether the job reached a terminal state
func (j RefreshJob) Done() bool {
	return j.Status != RefreshRunning
}

// CellFailure records a (product, supplier) pair the source could not refresh
type CellFailure struct {
	ProductID  ProductID  `json:"productId"`
	SupplierID SupplierID `json:"supplierId"`
	Err        string     `json:"error"`
}

// RefreshResult is what an observation source returns for a full pass.
// Prices is always a new matrix; cells listed in Failures keep their
// previous value.
type RefreshResult struct {
	Prices   PriceMatrix
	Updated  int
	Failures []CellFailure
}
