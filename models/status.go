package models

type CheckpointStatus string

const (
	CheckpointStable    CheckpointStatus = "STABLE"
	CheckpointTentative CheckpointStatus = "TENTATIVE"
	CheckpointPermanent CheckpointStatus = "PERMANENT"
	CheckpointAborted   CheckpointStatus = "ABORTED"
)

type RollbackStatus string

const (
	RollbackStable     RollbackStatus = "STABLE"
	RollbackPrepared   RollbackStatus = "PREPARED"
	RollbackRolledBack RollbackStatus = "ROLLED_BACK"
	RollbackCancelled  RollbackStatus = "CANCELLED"
)

// Status is a point-in-time view of a customer, served to the operator.
type Status struct {
	Name         string           `json:"name"`
	Balance      int64            `json:"balance"`
	Epoch        uint64           `json:"epoch"`
	Executing    bool             `json:"executing"`     // false while a rollback is prepared
	Checkpoint   CheckpointStatus `json:"checkpoint"`    // negotiation in progress, if any
	CheckpointID string           `json:"checkpoint_id"` // empty when stable
	Rollback     RollbackStatus   `json:"rollback"`
	RollbackID   string           `json:"rollback_id"`
}
