package models

// Action names a role-gated edge of the workflow.
type Action string

const (
	ActionApproveToSupervisor  Action = "approve_to_supervisor"
	ActionApproveToExaminer    Action = "approve_to_examiner"
	ActionRejectToInterviewer  Action = "reject_to_interviewer"
	ActionRejectToSupervisor   Action = "reject_to_supervisor"
	ActionApplySamplingGate    Action = "apply_sampling_gate"
	ActionFinalApproval        Action = "final_approval"
	ActionResubmitToSupervisor Action = "resubmit_to_supervisor"
)

// Transition is the static descriptor of one workflow edge.
//
// Ordinary transitions land on To. Sampling transitions draw against the
// configured percentage: within the percentage the record lands on
// SampledTo, otherwise on To.
type Transition struct {
	Action       Action
	From         []Status
	To           Status
	RequiredRole Role
	RequiresNote bool
	Sampling     bool
	SampledTo    Status
}

// transitionTable is the whole workflow, initial to terminal. Adding an
// action is a data change here, not a code change in the engine.
var transitionTable = []Transition{
	{
		Action:       ActionApproveToSupervisor,
		From:         []Status{StatusPendingA, StatusRejectedByB},
		To:           StatusPendingB,
		RequiredRole: RoleInterviewer,
	},
	{
		Action:       ActionApproveToExaminer,
		From:         []Status{StatusPendingB, StatusRejectedByC},
		To:           StatusPendingC,
		RequiredRole: RoleSupervisor,
	},
	{
		Action:       ActionRejectToInterviewer,
		From:         []Status{StatusPendingB, StatusRejectedByC},
		To:           StatusRejectedByB,
		RequiredRole: RoleSupervisor,
		RequiresNote: true,
	},
	{
		Action:       ActionRejectToSupervisor,
		From:         []Status{StatusPendingC},
		To:           StatusRejectedByC,
		RequiredRole: RoleExaminer,
		RequiresNote: true,
	},
	{
		Action:       ActionApplySamplingGate,
		From:         []Status{StatusPendingB, StatusRejectedByC},
		To:           StatusPendingC,
		RequiredRole: RoleSupervisor,
		Sampling:     true,
		SampledTo:    StatusFinalizedBySampling,
	},
	{
		Action:       ActionFinalApproval,
		From:         []Status{StatusPendingC},
		To:           StatusFinalized,
		RequiredRole: RoleExaminer,
	},
	{
		Action:       ActionResubmitToSupervisor,
		From:         []Status{StatusRejectedByB},
		To:           StatusPendingB,
		RequiredRole: RoleInterviewer,
	},
}

var transitionsByAction = func() map[Action]Transition {
	m := make(map[Action]Transition, len(transitionTable))
	for _, t := range transitionTable {
		m[t.Action] = t
	}
	return m
}()

// LookupTransition resolves an action name to its transition descriptor.
func LookupTransition(action Action) (Transition, bool) {
	t, ok := transitionsByAction[action]
	return t, ok
}

// ActionsFrom returns the actions structurally valid for a status, in table
// order. Terminal statuses have none. This is record-independent so the UI
// can list affordances without loading a record.
func ActionsFrom(status Status) []Action {
	var actions []Action
	for _, t := range transitionTable {
		if t.AllowsFrom(status) {
			actions = append(actions, t.Action)
		}
	}
	return actions
}

// AllowsFrom reports whether status is in the transition's from-set.
func (t Transition) AllowsFrom(status Status) bool {
	for _, s := range t.From {
		if s == status {
			return true
		}
	}
	return false
}

// String returns the string representation.
func (a Action) String() string { return string(a) }
