package wire

import (
	"encoding/binary"
	"fmt"
	"github.com/google/uuid"
	"io"
)

// MaxBytesLength - Upper bound for length prefixed strings and byte slices
const MaxBytesLength = 64 << 20

// WriteInt32 - Writes v big endian
func WriteInt32(w io.Writer, v int32) error {
	return binary.Write(w, binary.BigEndian, v)
}

// ReadInt32 - Reads a big endian int32
func ReadInt32(r io.Reader) (v int32, err error) {
	err = binary.Read(r, binary.BigEndian, &v)
	return
}

// WriteInt64 - Writes v big endian
func WriteInt64(w io.Writer, v int64) error {
	return binary.Write(w, binary.BigEndian, v)
}

// ReadInt64 - Reads a big endian int64
func ReadInt64(r io.Reader) (v int64, err error) {
	err = binary.Read(r, binary.BigEndian, &v)
	return
}

// WriteUint64 - Writes v big endian
func WriteUint64(w io.Writer, v uint64) error {
	return binary.Write(w, binary.BigEndian, v)
}

// ReadUint64 - Reads a big endian uint64
func ReadUint64(r io.Reader) (v uint64, err error) {
	err = binary.Read(r, binary.BigEndian, &v)
	return
}

// WriteBool - Writes v as a single byte
func WriteBool(w io.Writer, v bool) error {
	return binary.Write(w, binary.BigEndian, v)
}

// ReadBool - Reads a single byte bool
func ReadBool(r io.Reader) (v bool, err error) {
	err = binary.Read(r, binary.BigEndian, &v)
	return
}

// WriteBytes - Writes a 4-byte length followed by data
func WriteBytes(w io.Writer, data []byte) (err error) {
	err = WriteInt32(w, int32(len(data)))
	if err != nil {
		return
	}
	_, err = w.Write(data)

	return
}

// ReadBytes - Reads bytes written by WriteBytes
func ReadBytes(r io.Reader) (data []byte, err error) {
	n, err := ReadInt32(r)
	if err != nil {
		return
	}
	if n < 0 || n > MaxBytesLength {
		err = fmt.Errorf("invalid length %d", n)
		return
	}

	data = make([]byte, n)
	_, err = io.ReadFull(r, data)

	return
}

// WriteString - Writes s length prefixed
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString - Reads a string written by WriteString
func ReadString(r io.Reader) (s string, err error) {
	data, err := ReadBytes(r)
	s = string(data)
	return
}

// WriteUUID - Writes the 16 bytes of id
func WriteUUID(w io.Writer, id uuid.UUID) (err error) {
	_, err = w.Write(id[:])
	return
}

// ReadUUID - Reads 16 bytes into a uuid
func ReadUUID(r io.Reader) (id uuid.UUID, err error) {
	_, err = io.ReadFull(r, id[:])
	return
}
