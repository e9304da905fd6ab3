package domain

type SubmissionState string

const (
	SubmissionIdle              SubmissionState = "IDLE"
	SubmissionValidating        SubmissionState = "VALIDATING"
	SubmissionPlacingOrder      SubmissionState = "PLACING_ORDER"
	SubmissionAwaitingPayment   SubmissionState = "AWAITING_PAYMENT"
	SubmissionProcessingSuccess SubmissionState = "PROCESSING_SUCCESS"
	SubmissionSucceeded         SubmissionState = "SUCCEEDED"
	SubmissionFailed            SubmissionState = "FAILED"
)

var submissionTransitions = map[SubmissionState][]SubmissionState{
	SubmissionIdle:              {SubmissionValidating},
	SubmissionFailed:            {SubmissionValidating, SubmissionIdle},
	SubmissionValidating:        {SubmissionPlacingOrder, SubmissionFailed},
	SubmissionPlacingOrder:      {SubmissionAwaitingPayment, SubmissionFailed},
	SubmissionAwaitingPayment:   {SubmissionProcessingSuccess, SubmissionIdle},
	SubmissionProcessingSuccess: {SubmissionSucceeded},
	SubmissionSucceeded:         {SubmissionIdle},
}

func CanTransitionTo(from, to SubmissionState) bool {
	for _, next := range submissionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InFlight reports whether a submission or its payment is underway.
func (s SubmissionState) InFlight() bool {
	switch s {
	case SubmissionValidating, SubmissionPlacingOrder, SubmissionAwaitingPayment, SubmissionProcessingSuccess:
		return true
	default:
		return false
	}
}

// Quiescent reports whether live cart reconciliation may run.
func (s SubmissionState) Quiescent() bool {
	return s == SubmissionIdle || s == SubmissionFailed || s == SubmissionValidating
}

func (s SubmissionState) String() string {
	return string(s)
}
