package bridge

import "fmt"

// Error taxonomy of the bridge. Producer failures are UnsupportedError
// and FieldError, consumer failures are ResolveError, byte-level
// failures are DecodeError, file I/O failures are StorageError. SQL
// planning errors pass through unchanged.

// UnsupportedError reports a plan or expression construct the wire
// format cannot carry.
type UnsupportedError struct {
	Construct string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported construct: %s", e.Construct)
}

// FieldError reports a field reference that cannot be bound to the
// input schema.
type FieldError struct {
	Name string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s is not bound to the input schema", e.Name)
}

// ResolveError reports a wire element that cannot be resolved against
// the session: an unknown table, function, or type.
type ResolveError struct {
	Kind string // "table", "function", "type"
	Name string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("cannot resolve %s %q", e.Kind, e.Name)
}

// DecodeError reports malformed or invalid wire bytes.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode plan bytes: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StorageError reports a failed file read or write.
type StorageError struct {
	Op   string // "read", "write"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
