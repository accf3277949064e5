// Package serialize implements the little-endian binary primitives used by
// every persisted record. Field order and widths are the record's wire format:
// once a record version ships, the sequence of calls that produced it must
// never change.
package serialize

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/runeshard/server/internal/geo"
)

// Writer builds a binary record. All multi-byte writes are little-endian.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 256)}
}

// NewWriterSize preallocates n bytes.
func NewWriterSize(n int) *Writer {
	return &Writer{buf: make([]byte, 0, n)}
}

// WriteByte writes 1 byte. It never fails; the error satisfies io.ByteWriter.
func (w *Writer) WriteByte(v byte) error {
	w.buf = append(w.buf, v)
	return nil
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteUint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) WriteInt8(v int8) { w.buf = append(w.buf, byte(v)) }

func (w *Writer) WriteInt16(v int16) { w.WriteUint16(uint16(v)) }

func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }

func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteInt64(v int64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
}

func (w *Writer) WriteFloat64(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// WriteEncodedInt writes v in 7-bit groups, low group first; the high bit of
// each byte marks a continuation. Small non-negative values take one byte.
func (w *Writer) WriteEncodedInt(v int) {
	u := uint32(v)
	for u >= 0x80 {
		w.buf = append(w.buf, byte(u|0x80))
		u >>= 7
	}
	w.buf = append(w.buf, byte(u))
}

// WriteString writes a presence flag, then a 7-bit encoded byte length and
// the UTF-8 bytes. The empty string is written as present with length 0.
func (w *Writer) WriteString(s string) {
	w.WriteBool(true)
	w.WriteEncodedInt(len(s))
	w.buf = append(w.buf, s...)
}

// WriteNullString writes the absent marker read back as "" with ok=false.
func (w *Writer) WriteNullString() { w.WriteBool(false) }

// WriteTime writes t as Unix nanoseconds; the zero time is written as 0.
func (w *Writer) WriteTime(t time.Time) {
	if t.IsZero() {
		w.WriteInt64(0)
		return
	}
	w.WriteInt64(t.UnixNano())
}

func (w *Writer) WriteDuration(d time.Duration) { w.WriteInt64(int64(d)) }

// WritePoint3D writes X and Y as int32 and Z as int8.
func (w *Writer) WritePoint3D(p geo.Point3D) {
	w.WriteInt32(int32(p.X))
	w.WriteInt32(int32(p.Y))
	w.WriteInt8(int8(p.Z))
}

// WriteBytes writes raw bytes with no length prefix.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the written bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Reset empties the writer, keeping its capacity.
func (w *Writer) Reset() { w.buf = w.buf[:0] }
