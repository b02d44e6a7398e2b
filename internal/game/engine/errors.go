package engine

// RuleError reports an action that is illegal for the current game state.
// Its message is shown to the acting player verbatim.
type RuleError struct {
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

// NewRuleError creates a RuleError with the given player-facing message.
func NewRuleError(message string) *RuleError {
	return &RuleError{Message: message}
}
