package agent

import "strings"

// confirmCommand and cancelCommand are parsed out of an inbound message
// before the normal prompt path runs, whenever the session has a pending
// confirmation (§4.8 step 5). Anything else aborts the pending
// transaction with a warning.
const (
	confirmCommand = "/confirm"
	cancelCommand  = "/cancel"
)

// parseConfirmation classifies text against the pending-confirmation
// mini-grammar. ok is false when text is neither command, meaning the
// caller should abort the pending transaction.
func parseConfirmation(text string) (confirmed, ok bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case confirmCommand:
		return true, true
	case cancelCommand:
		return false, true
	default:
		return false, false
	}
}
