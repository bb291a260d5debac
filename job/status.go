package job

// transitions is the single source of truth for legal job status edges.
// Every component that moves a job, including dispute resolution, must
// consult it.
var transitions = map[Status][]Status{
	StatusOpen:              {StatusHired, StatusCancelled},
	StatusHired:             {StatusConfirmed, StatusCancelled},
	StatusConfirmed:         {StatusInTrade},
	StatusInTrade:           {StatusDelivered, StatusDisputed},
	StatusDelivered:         {StatusRevisionRequested, StatusCompleted, StatusInTrade, StatusDisputed},
	StatusRevisionRequested: {StatusDelivered, StatusInTrade, StatusDisputed},
	StatusDisputed:          {StatusCompleted, StatusRefunded},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// InActiveTrade reports whether the trade-room session bound to the job is
// open for normal buyer/seller interaction.
func InActiveTrade(s Status) bool {
	switch s {
	case StatusInTrade, StatusDelivered, StatusRevisionRequested:
		return true
	default:
		return false
	}
}
