package wire

import (
	"bytes"
	"errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"testing"
)

type testMessage struct {
	id     uuid.UUID
	name   string
	count  int64
	hash   uint64
	active bool
}

func (T *testMessage) Type() int32 { return 7 }

func (T *testMessage) Serialize(w io.Writer) (err error) {
	if err = WriteUUID(w, T.id); err != nil {
		return
	}
	if err = WriteString(w, T.name); err != nil {
		return
	}
	if err = WriteInt64(w, T.count); err != nil {
		return
	}
	if err = WriteUint64(w, T.hash); err != nil {
		return
	}
	return WriteBool(w, T.active)
}

func (T *testMessage) Deserialize(r io.Reader) (err error) {
	if T.id, err = ReadUUID(r); err != nil {
		return
	}
	if T.name, err = ReadString(r); err != nil {
		return
	}
	if T.count, err = ReadInt64(r); err != nil {
		return
	}
	if T.hash, err = ReadUint64(r); err != nil {
		return
	}
	T.active, err = ReadBool(r)
	return
}

func TestRegistry_Register(t *testing.T) {
	t.Run("rejects duplicate type", func(t *testing.T) {
		// Prepare
		registry := NewRegistry()
		err := registry.Register(7, func() Message { return &testMessage{} })
		require.NoError(t, err, "registers")

		// Execute
		err = registry.Register(7, func() Message { return &testMessage{} })

		// Check
		assert.True(t, errors.Is(err, ErrDuplicateType), "duplicate type")
	})
}

func TestRegistry_Copy(t *testing.T) {
	t.Run("decodes what was encoded", func(t *testing.T) {
		// Prepare
		registry := NewRegistry()
		_ = registry.Register(7, func() Message { return &testMessage{} })
		message := &testMessage{id: uuid.New(), name: "db1", count: -5, hash: 1 << 63, active: true}

		// Execute
		copied, err := registry.Copy(message)

		// Check
		assert.NoError(t, err, "copies")
		assert.Equal(t, message, copied, "same content")
		assert.NotSame(t, message, copied, "new instance")
	})

	t.Run("fails on unknown type", func(t *testing.T) {
		// Prepare
		registry := NewRegistry()

		// Execute
		_, err := registry.Copy(&testMessage{})

		// Check
		assert.True(t, errors.Is(err, ErrUnknownType), "unknown type")
	})
}

func TestReadBytes(t *testing.T) {
	t.Run("rejects negative length", func(t *testing.T) {
		// Prepare
		var buf bytes.Buffer
		_ = WriteInt32(&buf, -1)

		// Execute
		_, err := ReadBytes(&buf)

		// Check
		assert.Error(t, err, "negative length")
	})

	t.Run("fails on short content", func(t *testing.T) {
		// Prepare
		var buf bytes.Buffer
		_ = WriteInt32(&buf, 10)
		buf.Write([]byte{1, 2, 3})

		// Execute
		_, err := ReadBytes(&buf)

		// Check
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "short read")
	})
}
