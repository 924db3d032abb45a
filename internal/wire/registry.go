package wire

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Factory - Returns a new empty message ready for Deserialize
type Factory func() Message

// Registry - Maps type tags to message factories. Registries are built explicitly by their owners, there is no
// package level registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[int32]Factory
}

// NewRegistry - Returns a pointer to a new empty Registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[int32]Factory)}
}

// Register - Adds factory for messageType, ErrDuplicateType if the tag is taken
func (R *Registry) Register(messageType int32, factory Factory) (err error) {
	R.mu.Lock()
	defer R.mu.Unlock()

	if _, ok := R.factories[messageType]; ok {
		err = fmt.Errorf("%w: %d", ErrDuplicateType, messageType)
		return
	}
	R.factories[messageType] = factory

	return
}

// New - Returns a new empty message of messageType, ErrUnknownType if not registered
func (R *Registry) New(messageType int32) (message Message, err error) {
	R.mu.RLock()
	factory, ok := R.factories[messageType]
	R.mu.RUnlock()

	if !ok {
		err = fmt.Errorf("%w: %d", ErrUnknownType, messageType)
		return
	}

	message = factory()

	return
}

// Encode - Writes the type tag of message followed by its content
func (R *Registry) Encode(w io.Writer, message Message) (err error) {
	err = WriteInt32(w, message.Type())
	if err != nil {
		return
	}

	return message.Serialize(w)
}

// Decode - Reads a type tag and the content of a message of that type
func (R *Registry) Decode(r io.Reader) (message Message, err error) {
	messageType, err := ReadInt32(r)
	if err != nil {
		return
	}

	message, err = R.New(messageType)
	if err != nil {
		return
	}

	err = message.Deserialize(r)
	if err != nil {
		err = fmt.Errorf("error while decoding message type %d: %w", messageType, err)
	}

	return
}

// Marshal - Returns message encoded with its type tag
func (R *Registry) Marshal(message Message) (data []byte, err error) {
	var buf bytes.Buffer
	err = R.Encode(&buf, message)
	if err != nil {
		return
	}

	data = buf.Bytes()

	return
}

// Unmarshal - Decodes a message previously encoded by Marshal
func (R *Registry) Unmarshal(data []byte) (message Message, err error) {
	return R.Decode(bytes.NewReader(data))
}

// Copy - Returns a new message decoded from the encoding of message, as it would arrive at a remote member
func (R *Registry) Copy(message Message) (copied Message, err error) {
	data, err := R.Marshal(message)
	if err != nil {
		return
	}

	return R.Unmarshal(data)
}
