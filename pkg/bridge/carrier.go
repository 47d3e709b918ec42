// Package bridge converts between the logical query representation and
// the wire interchange format. The Producer turns logical plans and
// expressions into wire messages, the Consumer turns wire messages back
// into logical form against a session catalog, and the Serializer ties
// both to SQL text and files.
package bridge

import (
	"github.com/leapstack-labs/planwire/pkg/wire"
)

// Plan carries a decoded wire plan. It is produced by ToWirePlan and the
// deserialize paths and holds no identity of its own: two carriers over
// equal messages are interchangeable.
type Plan struct {
	msg *wire.Plan
}

// Message returns the underlying wire message.
func (p *Plan) Message() *wire.Plan { return p.msg }

// Encode returns the canonical byte encoding of the plan.
func (p *Plan) Encode() ([]byte, error) {
	return wire.EncodePlan(p.msg)
}

// Expression carries a decoded wire expression envelope.
type Expression struct {
	msg *wire.ExtendedExpression
}

// Message returns the underlying wire message.
func (e *Expression) Message() *wire.ExtendedExpression { return e.msg }

// Encode returns the canonical byte encoding of the expression envelope.
func (e *Expression) Encode() ([]byte, error) {
	return wire.EncodeExtendedExpression(e.msg)
}
