package types

// Event represents a structured signal emitted by a program operation. The
// attribute map carries the stringified payload so the journal and any
// downstream subscriber can consume it without knowing the concrete type.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
