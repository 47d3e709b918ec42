package bridge

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/planwire/pkg/logical"
	"github.com/leapstack-labs/planwire/pkg/wire"
)

// expressionLabel names the single expression of an envelope serialized
// from SQL text.
const expressionLabel = "planwire_expression"

// Serializer converts SQL text to wire bytes and back, planning against
// a session. File writes are atomic: a failed serialize never leaves a
// truncated output file.
type Serializer struct {
	log *slog.Logger
}

// NewSerializer creates a serializer. A nil logger discards output.
func NewSerializer(logger *slog.Logger) *Serializer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Serializer{log: logger}
}

// Serialize plans the SQL against the session and writes the encoded
// plan to path.
func (s *Serializer) Serialize(ctx context.Context, sql string, sess *logical.Session, path string) error {
	data, err := s.SerializeBytes(ctx, sql, sess)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}
	s.log.Info("plan serialized", "path", path, "bytes", len(data))
	return nil
}

// SerializeBytes plans the SQL against the session and returns the
// encoded plan bytes.
func (s *Serializer) SerializeBytes(ctx context.Context, sql string, sess *logical.Session) ([]byte, error) {
	plan, err := sess.Plan(ctx, sql)
	if err != nil {
		return nil, err
	}
	wp, err := ToWirePlan(plan, sess)
	if err != nil {
		return nil, err
	}
	return wp.Encode()
}

// SerializeToPlan plans the SQL and returns the plan carrier. The
// carrier is decoded from the encoded bytes, so it never diverges from
// what SerializeBytes yields for the same input.
func (s *Serializer) SerializeToPlan(ctx context.Context, sql string, sess *logical.Session) (*Plan, error) {
	data, err := s.SerializeBytes(ctx, sql, sess)
	if err != nil {
		return nil, err
	}
	return s.DeserializeBytes(data)
}

// SerializeExpressionBytes plans a scalar SQL expression against the
// schema and returns the encoded envelope bytes.
func (s *Serializer) SerializeExpressionBytes(ctx context.Context, sql string, schema *logical.Schema, sess *logical.Session) ([]byte, error) {
	expr, err := sess.PlanExpr(ctx, sql, schema)
	if err != nil {
		return nil, err
	}
	return s.SerializeExprBytes(expr, schema)
}

// SerializeExprBytes encodes an already-bound expression over a schema.
func (s *Serializer) SerializeExprBytes(expr logical.Expr, schema *logical.Schema) ([]byte, error) {
	we, err := ToWireExpression(expr, expressionLabel, schema)
	if err != nil {
		return nil, err
	}
	return we.Encode()
}

// Deserialize reads and decodes a plan file.
func (s *Serializer) Deserialize(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}
	return s.DeserializeBytes(data)
}

// DeserializeBytes decodes plan bytes into a carrier.
func (s *Serializer) DeserializeBytes(data []byte) (*Plan, error) {
	msg, err := wire.DecodePlan(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &Plan{msg: msg}, nil
}

// DeserializeExpressionBytes decodes expression envelope bytes into a
// carrier.
func (s *Serializer) DeserializeExpressionBytes(data []byte) (*Expression, error) {
	msg, err := wire.DecodeExtendedExpression(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &Expression{msg: msg}, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".planwire-*")
	if err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	return nil
}
