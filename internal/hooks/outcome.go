// Package hooks implements the HookBus (§4.5, C6): a host-supplied
// Provider is invoked at each pipeline stage and its effect on a mutable
// context is classified into one of four outcomes. This replaces the
// "per-context mutable booleans" the spec calls out as a design smell
// (§9) with the tagged-union Outcome prescribed there.
package hooks

// Kind tags the classification of a stage's result.
type Kind int

const (
	// Default means no override was requested; the pipeline should run
	// its built-in behavior (serialize/deserialize/cache/render).
	Default Kind = iota
	// HandledResponse means the caller fully handled the stage; the
	// pipeline returns immediately with the caller-supplied result.
	HandledResponse
	// Skipped means the caller abandoned the pipeline; it returns no
	// result and downstream code should behave as if the middleware
	// were absent.
	Skipped
	// Rejected means the caller produced an error that must short-
	// circuit to the terminal response.
	Rejected
)

// Rejection is the OAuth error triple (§7), surfaced verbatim on the wire.
type Rejection struct {
	Error       string
	Description string
	URI         string
}

// Outcome is the tagged variant every hook dispatch classifies to.
type Outcome struct {
	Kind  Kind
	Value string     // payload for HandledResponse
	Err   *Rejection // payload for Rejected
}

// base is embedded by every per-stage context type; it gives host code
// the three verbs a Provider method uses to set an outcome, and gives
// the pipeline a uniform way to read back what was set.
type base struct {
	outcome Outcome
}

// Handle marks the stage as fully handled by the caller, with value as
// the result (the credential string for issuance; the receive and logout
// pipelines do not read it).
func (b *base) Handle(value string) {
	b.outcome = Outcome{Kind: HandledResponse, Value: value}
}

// Skip marks the stage as abandoned.
func (b *base) Skip() {
	b.outcome = Outcome{Kind: Skipped}
}

// Reject marks the stage as failed with the given OAuth error triple.
func (b *base) Reject(r Rejection) {
	b.outcome = Outcome{Kind: Rejected, Err: &r}
}

// Outcome returns the classification so far; the zero value is Default.
func (b *base) Outcome() Outcome {
	return b.outcome
}
