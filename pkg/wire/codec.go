package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Binary codec. Encoding uses CBOR core deterministic options so that a
// message always encodes to the same bytes: decoding and re-encoding a
// valid payload reproduces it exactly.

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

// EncodePlan validates and encodes a plan.
func EncodePlan(p *Plan) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return encMode.Marshal(p)
}

// DecodePlan decodes and validates plan bytes.
func DecodePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := decMode.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// EncodeExtendedExpression validates and encodes an expression envelope.
func EncodeExtendedExpression(x *ExtendedExpression) ([]byte, error) {
	if err := x.Validate(); err != nil {
		return nil, fmt.Errorf("invalid extended expression: %w", err)
	}
	return encMode.Marshal(x)
}

// DecodeExtendedExpression decodes and validates expression bytes.
func DecodeExtendedExpression(data []byte) (*ExtendedExpression, error) {
	var x ExtendedExpression
	if err := decMode.Unmarshal(data, &x); err != nil {
		return nil, err
	}
	if err := x.Validate(); err != nil {
		return nil, err
	}
	return &x, nil
}
