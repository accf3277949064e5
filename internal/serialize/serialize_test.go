package serialize

import (
	"errors"
	"testing"
	"time"

	"github.com/runeshard/server/internal/geo"
)

func TestRecordFieldSequence(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	w := NewWriter()
	w.WriteEncodedInt(2) // version
	w.WriteString("Lord British")
	w.WriteNullString()
	w.WriteString("")
	w.WriteInt32(-17)
	w.WriteUint16(0x190)
	w.WriteBool(true)
	w.WritePoint3D(geo.Point3D{X: 1496, Y: 1628, Z: -20})
	w.WriteTime(when)
	w.WriteTime(time.Time{})
	w.WriteDuration(90 * time.Second)
	w.WriteFloat64(0.25)

	r := NewReader(w.Bytes())
	if v := r.ReadEncodedInt(); v != 2 {
		t.Errorf("version = %d", v)
	}
	if s := r.ReadString(); s != "Lord British" {
		t.Errorf("name = %q", s)
	}
	if s, ok := r.ReadStringOK(); ok || s != "" {
		t.Errorf("null string = %q, %v", s, ok)
	}
	if s, ok := r.ReadStringOK(); !ok || s != "" {
		t.Errorf("empty string = %q, %v", s, ok)
	}
	if v := r.ReadInt32(); v != -17 {
		t.Errorf("int32 = %d", v)
	}
	if v := r.ReadUint16(); v != 0x190 {
		t.Errorf("uint16 = %#x", v)
	}
	if !r.ReadBool() {
		t.Error("bool lost")
	}
	if p := r.ReadPoint3D(); p != (geo.Point3D{X: 1496, Y: 1628, Z: -20}) {
		t.Errorf("point = %v", p)
	}
	if got := r.ReadTime(); !got.Equal(when) {
		t.Errorf("time = %v", got)
	}
	if got := r.ReadTime(); !got.IsZero() {
		t.Errorf("zero time = %v", got)
	}
	if d := r.ReadDuration(); d != 90*time.Second {
		t.Errorf("duration = %s", d)
	}
	if f := r.ReadFloat64(); f != 0.25 {
		t.Errorf("float = %v", f)
	}
	if r.Err() != nil || r.Remaining() != 0 {
		t.Errorf("err=%v remaining=%d", r.Err(), r.Remaining())
	}
}

func TestEncodedIntWidths(t *testing.T) {
	tests := []struct {
		v     int
		width int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{-1, 5},
	}
	for _, tt := range tests {
		w := NewWriter()
		w.WriteEncodedInt(tt.v)
		if w.Len() != tt.width {
			t.Errorf("EncodedInt(%d) width = %d, want %d", tt.v, w.Len(), tt.width)
		}
		if got := NewReader(w.Bytes()).ReadEncodedInt(); got != tt.v {
			t.Errorf("EncodedInt(%d) read back %d", tt.v, got)
		}
	}
}

func TestShortReadIsSticky(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_ = r.ReadInt32()
	if !errors.Is(r.Err(), ErrShortRead) {
		t.Fatalf("err = %v, want ErrShortRead", r.Err())
	}
	if v := r.ReadInt8(); v != 0 {
		t.Errorf("read after failure = %d, want 0", v)
	}
	if r.Remaining() != 0 {
		t.Errorf("remaining = %d", r.Remaining())
	}
}

func TestStringLengthBeyondRecord(t *testing.T) {
	w := NewWriter()
	w.WriteBool(true)
	w.WriteEncodedInt(50)
	w.WriteBytes([]byte("abc"))
	r := NewReader(w.Bytes())
	if s := r.ReadString(); s != "" {
		t.Errorf("string = %q", s)
	}
	if r.Err() == nil {
		t.Fatal("expected error for truncated string")
	}
}

func TestWriterReset(t *testing.T) {
	w := NewWriter()
	w.WriteInt64(1)
	w.Reset()
	if w.Len() != 0 {
		t.Errorf("len after reset = %d", w.Len())
	}
}
