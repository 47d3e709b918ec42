package logical

import "fmt"

// ResolutionError reports a name that could not be resolved through the
// session catalog during planning.
type ResolutionError struct {
	Kind string // "table", "column", "function", or "type"
	Name string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// PlanError reports a statement the planner cannot express as a logical
// plan, naming the offending construct.
type PlanError struct {
	Construct string
	Message   string
}

func (e *PlanError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cannot plan %s", e.Construct)
	}
	return fmt.Sprintf("cannot plan %s: %s", e.Construct, e.Message)
}
