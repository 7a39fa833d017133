package domain

// ExecutionMode selects where a query or file load runs: the in-process
// engine or the configured remote executor. The mode is persisted per user;
// switching does not migrate tables between engines, so a table loaded in one
// mode is simply absent from the other.
type ExecutionMode string

const (
	ModeEmbedded ExecutionMode = "embedded"
	ModeRemote   ExecutionMode = "remote"
)

// ParseExecutionMode validates a mode string.
func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch ExecutionMode(s) {
	case ModeEmbedded, ModeRemote:
		return ExecutionMode(s), nil
	}
	return "", ErrValidation("unknown execution mode %q (want embedded or remote)", s)
}
