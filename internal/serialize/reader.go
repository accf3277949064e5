package serialize

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/runeshard/server/internal/geo"
)

// ErrShortRead is returned once a read runs past the end of the record.
var ErrShortRead = errors.New("serialize: read past end of record")

// Reader decodes a record produced by Writer. The first failed read sets a
// sticky error; later reads return zero values, so callers may read a whole
// field sequence and check Err once.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first decoding error, if any.
func (r *Reader) Err() error { return r.err }

// Pos returns the number of bytes consumed.
func (r *Reader) Pos() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// Fail records err as the sticky error unless one is already set.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortRead, n, r.off, len(r.data)-r.off)
		r.off = len(r.data)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// ReadByte reads 1 byte. It satisfies io.ByteReader.
func (r *Reader) ReadByte() (byte, error) {
	b := r.take(1)
	if b == nil {
		return 0, r.err
	}
	return b[0], nil
}

func (r *Reader) ReadBool() bool {
	b := r.take(1)
	return b != nil && b[0] != 0
}

func (r *Reader) ReadUint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) ReadInt8() int8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return int8(b[0])
}

func (r *Reader) ReadInt16() int16 { return int16(r.ReadUint16()) }

func (r *Reader) ReadUint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) ReadInt32() int32 { return int32(r.ReadUint32()) }

func (r *Reader) ReadUint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) ReadInt64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

func (r *Reader) ReadFloat64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// ReadEncodedInt reads a value written by WriteEncodedInt.
func (r *Reader) ReadEncodedInt() int {
	var v uint32
	var shift uint
	for i := 0; i < 5; i++ {
		b := r.take(1)
		if b == nil {
			return 0
		}
		v |= uint32(b[0]&0x7F) << shift
		if b[0]&0x80 == 0 {
			return int(int32(v))
		}
		shift += 7
	}
	r.Fail(errors.New("serialize: encoded int longer than 5 bytes"))
	return 0
}

// ReadString reads a string written by WriteString or WriteNullString.
// A null string reads as "".
func (r *Reader) ReadString() string {
	s, _ := r.ReadStringOK()
	return s
}

// ReadStringOK is ReadString that also reports whether the string was present.
func (r *Reader) ReadStringOK() (string, bool) {
	if !r.ReadBool() {
		return "", false
	}
	n := r.ReadEncodedInt()
	if n < 0 {
		r.Fail(fmt.Errorf("serialize: negative string length %d", n))
		return "", false
	}
	b := r.take(n)
	if b == nil {
		return "", false
	}
	if !utf8.Valid(b) {
		r.Fail(errors.New("serialize: string is not valid UTF-8"))
		return "", false
	}
	return string(b), true
}

func (r *Reader) ReadTime() time.Time {
	v := r.ReadInt64()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}

func (r *Reader) ReadDuration() time.Duration { return time.Duration(r.ReadInt64()) }

func (r *Reader) ReadPoint3D() geo.Point3D {
	x := r.ReadInt32()
	y := r.ReadInt32()
	z := r.ReadInt8()
	return geo.Point3D{X: int(x), Y: int(y), Z: int(z)}
}

// ReadBytes reads n raw bytes. The returned slice is a copy.
func (r *Reader) ReadBytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}
