// Package wire defines the contract every message exchanged between cluster members follows and the registry
// used to turn a type tag back into a message.
package wire

import (
	"errors"
	"io"
)

// ErrUnknownType is returned when a type tag has no registered factory.
var ErrUnknownType = errors.New("wire: unknown message type")

// ErrDuplicateType is returned when a type tag is registered twice.
var ErrDuplicateType = errors.New("wire: message type already registered")

// Message - Anything sent over the network. The type tag is unique per registry and is written ahead of the
// serialized content.
type Message interface {
	Type() int32
	Serialize(w io.Writer) error
	Deserialize(r io.Reader) error
}
