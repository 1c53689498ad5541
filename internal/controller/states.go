package controller

// controllerState names the position of a RequestController in its state
// machine. The zero value, closed, is the initial and only re-enterable
// state.
type controllerState int

const (
	closed controllerState = iota
	determine
	refresh
	awaitRefresh
	execute
	handleResponse
	finished
	failed
)

func (s controllerState) String() string {
	switch s {
	case closed:
		return "CLOSED"
	case determine:
		return "DETERMINE"
	case refresh:
		return "REFRESH"
	case awaitRefresh:
		return "AWAIT_REFRESH"
	case execute:
		return "EXECUTE"
	case handleResponse:
		return "HANDLE_RESPONSE"
	case finished:
		return "FINISHED"
	case failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
