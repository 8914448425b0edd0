package scaling

// Action says which way a Decision moves the worker pool.
type Action string

const (
	ActionScaleUp   Action = "scale_up"
	ActionScaleDown Action = "scale_down"
	ActionNone      Action = "none"
)

func (a Action) String() string { return string(a) }

// Decision is what Policy.Evaluate concluded from one status snapshot.
// Delta is signed: positive starts runners, negative stops them, and it is
// zero exactly when Action is ActionNone.
type Decision struct {
	Action Action
	Delta  int
	Reason string
}

// hold is the no-op decision with an explanation attached.
func hold(reason string) Decision {
	return Decision{Action: ActionNone, Reason: reason}
}
