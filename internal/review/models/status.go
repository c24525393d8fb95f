package models

// Status is one node of the review workflow. pending_* statuses are
// in-progress, rejected_* statuses are returned for rework, and the two
// finalized statuses are terminal.
type Status string

const (
	StatusPendingA            Status = "pending_a"
	StatusPendingB            Status = "pending_b"
	StatusPendingC            Status = "pending_c"
	StatusRejectedByB         Status = "rejected_by_b"
	StatusRejectedByC         Status = "rejected_by_c"
	StatusFinalized           Status = "finalized"
	StatusFinalizedBySampling Status = "finalized_by_sampling"
)

// StatusInitial is the status every imported record starts in.
const StatusInitial = StatusPendingA

// WorkflowState is static per-status metadata. The table is immutable,
// process-wide data; it never depends on a specific record or user.
type WorkflowState struct {
	Label           string
	OwningRole      Role // zero for terminal states
	Terminal        bool
	EditablePayload bool
}

var workflowStates = map[Status]WorkflowState{
	StatusPendingA:            {Label: "Awaiting interviewer review", OwningRole: RoleInterviewer, EditablePayload: true},
	StatusPendingB:            {Label: "Awaiting supervisor review", OwningRole: RoleSupervisor},
	StatusPendingC:            {Label: "Awaiting examiner review", OwningRole: RoleExaminer},
	StatusRejectedByB:         {Label: "Rejected by supervisor", OwningRole: RoleInterviewer, EditablePayload: true},
	StatusRejectedByC:         {Label: "Rejected by examiner", OwningRole: RoleSupervisor},
	StatusFinalized:           {Label: "Finalized", Terminal: true},
	StatusFinalizedBySampling: {Label: "Finalized by sampling", Terminal: true},
}

// statusOrder fixes iteration order for listings and statistics.
var statusOrder = []Status{
	StatusPendingA,
	StatusPendingB,
	StatusPendingC,
	StatusRejectedByB,
	StatusRejectedByC,
	StatusFinalized,
	StatusFinalizedBySampling,
}

// AllStatuses returns every workflow status in a stable order.
func AllStatuses() []Status {
	return append([]Status(nil), statusOrder...)
}

// IsValid checks if the status is a key of the workflow state table.
func (s Status) IsValid() bool {
	_, ok := workflowStates[s]
	return ok
}

// IsTerminal reports whether records in this status are immutable.
func (s Status) IsTerminal() bool {
	return workflowStates[s].Terminal
}

// OwningRole returns the role responsible for records in this status.
// Terminal statuses have no owning role.
func (s Status) OwningRole() (Role, bool) {
	st := workflowStates[s]
	if st.Terminal || st.OwningRole == "" {
		return "", false
	}
	return st.OwningRole, true
}

// PayloadEditable reports whether the interviewer may edit the payload of
// records in this status.
func (s Status) PayloadEditable() bool {
	return workflowStates[s].EditablePayload
}

// Label returns the human-readable name of the status.
func (s Status) Label() string {
	return workflowStates[s].Label
}

// VisibleToRole reports whether non-administrators holding role may view
// records in this status. Terminal statuses have no owning role and are
// reachable only through administrators.
func (s Status) VisibleToRole(role Role) bool {
	st, ok := workflowStates[s]
	if !ok || st.Terminal {
		return false
	}
	return st.OwningRole == role
}

// String returns the string representation.
func (s Status) String() string { return string(s) }
