package persist

import (
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/runeshard/server/internal/serialize"
	"github.com/runeshard/server/internal/world"
)

// FormatVersion is the file-level layout written by this code. Entity
// payload versions are separate and live inside each record.
const FormatVersion = 1

// File magics. Each file starts with its magic followed by the format version.
const (
	headerMagic uint32 = 0x48575352 // "RSWH"
	typesMagic  uint32 = 0x44545352 // "RSTD"
	indexMagic  uint32 = 0x58495352 // "RSIX"
	dataMagic   uint32 = 0x4E425352 // "RSBN"
	partMagic   uint32 = 0x54505352 // "RSPT"
)

var (
	// ErrCorrupt marks structural damage: bad magics, truncated files, or
	// index entries pointing outside the data body. Fatal for a load.
	ErrCorrupt = errors.New("persist: corrupt save")
	// ErrUnsupportedFormat is returned for a save written by a newer format.
	ErrUnsupportedFormat = errors.New("persist: unsupported save format")
)

// Header is the content of World.hdr.
type Header struct {
	Format        int
	SavedAt       time.Time
	MobileCounter world.Serial
	ItemCounter   world.Serial
	Mobiles       int
	Items         int
	Participants  []string
}

func encodeHeader(h Header) []byte {
	w := serialize.NewWriterSize(64)
	w.WriteUint32(headerMagic)
	w.WriteEncodedInt(h.Format)
	w.WriteTime(h.SavedAt)
	w.WriteInt32(int32(h.MobileCounter))
	w.WriteInt32(int32(h.ItemCounter))
	w.WriteEncodedInt(h.Mobiles)
	w.WriteEncodedInt(h.Items)
	w.WriteEncodedInt(len(h.Participants))
	for _, p := range h.Participants {
		w.WriteString(p)
	}
	return w.Bytes()
}

func decodeHeader(data []byte) (Header, error) {
	var h Header
	r := serialize.NewReader(data)
	if r.ReadUint32() != headerMagic {
		return h, fmt.Errorf("%w: bad world header magic", ErrCorrupt)
	}
	h.Format = r.ReadEncodedInt()
	if r.Err() == nil && (h.Format < 1 || h.Format > FormatVersion) {
		return h, fmt.Errorf("%w: format %d (max %d)", ErrUnsupportedFormat, h.Format, FormatVersion)
	}
	h.SavedAt = r.ReadTime()
	h.MobileCounter = world.Serial(r.ReadInt32())
	h.ItemCounter = world.Serial(r.ReadInt32())
	h.Mobiles = r.ReadEncodedInt()
	h.Items = r.ReadEncodedInt()
	n := r.ReadEncodedInt()
	if n < 0 || n > r.Remaining() {
		return h, fmt.Errorf("%w: participant count %d", ErrCorrupt, n)
	}
	for i := 0; i < n; i++ {
		h.Participants = append(h.Participants, r.ReadString())
	}
	if err := r.Err(); err != nil {
		return h, fmt.Errorf("%w: world header: %v", ErrCorrupt, err)
	}
	return h, nil
}

// record is one .idx entry: the entity's type, Serial, and the byte range
// of its payload inside the decoded .bin body.
type record struct {
	typeIndex int
	serial    world.Serial
	offset    int64
	length    int32
}

func encodeTypes(tags []string) []byte {
	w := serialize.NewWriter()
	w.WriteUint32(typesMagic)
	w.WriteEncodedInt(FormatVersion)
	w.WriteEncodedInt(len(tags))
	for _, t := range tags {
		w.WriteString(t)
	}
	return w.Bytes()
}

func decodeTypes(data []byte) ([]string, error) {
	r := serialize.NewReader(data)
	if err := checkMagic(r, typesMagic, "type table"); err != nil {
		return nil, err
	}
	n := r.ReadEncodedInt()
	if n < 0 || n > r.Remaining() {
		return nil, fmt.Errorf("%w: type table count %d", ErrCorrupt, n)
	}
	tags := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tags = append(tags, r.ReadString())
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: type table: %v", ErrCorrupt, err)
	}
	return tags, nil
}

const indexEntrySize = 4 + 4 + 8 + 4

func encodeIndex(recs []record) []byte {
	w := serialize.NewWriterSize(16 + len(recs)*indexEntrySize)
	w.WriteUint32(indexMagic)
	w.WriteEncodedInt(FormatVersion)
	w.WriteEncodedInt(len(recs))
	for _, rec := range recs {
		w.WriteInt32(int32(rec.typeIndex))
		w.WriteInt32(int32(rec.serial))
		w.WriteInt64(rec.offset)
		w.WriteInt32(rec.length)
	}
	return w.Bytes()
}

// decodeIndex reads the index and validates every entry against the type
// table and the decoded body length.
func decodeIndex(data []byte, kind world.Kind, types int, bodyLen int64) ([]record, error) {
	r := serialize.NewReader(data)
	if err := checkMagic(r, indexMagic, "index"); err != nil {
		return nil, err
	}
	n := r.ReadEncodedInt()
	if n < 0 || n*indexEntrySize > r.Remaining() {
		return nil, fmt.Errorf("%w: index count %d", ErrCorrupt, n)
	}
	recs := make([]record, n)
	for i := range recs {
		rec := record{
			typeIndex: int(r.ReadInt32()),
			serial:    world.Serial(r.ReadInt32()),
			offset:    r.ReadInt64(),
			length:    r.ReadInt32(),
		}
		switch {
		case rec.typeIndex < 0 || rec.typeIndex >= types:
			return nil, fmt.Errorf("%w: entry %d type index %d", ErrCorrupt, i, rec.typeIndex)
		case world.KindOf(rec.serial) != kind:
			return nil, fmt.Errorf("%w: entry %d serial %s is not a %s", ErrCorrupt, i, rec.serial, kind)
		case rec.offset < 0 || rec.length < 0 || rec.offset > bodyLen || int64(rec.length) > bodyLen-rec.offset:
			return nil, fmt.Errorf("%w: entry %d range [%d,+%d) outside body of %d bytes",
				ErrCorrupt, i, rec.offset, rec.length, bodyLen)
		}
		recs[i] = rec
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: index: %v", ErrCorrupt, err)
	}
	return recs, nil
}

// encodeData frames a payload body, compressing it with zstd when asked.
func encodeData(magic uint32, body []byte, compress bool) ([]byte, error) {
	w := serialize.NewWriterSize(16 + len(body))
	w.WriteUint32(magic)
	w.WriteEncodedInt(FormatVersion)
	w.WriteBool(compress)
	if !compress {
		w.WriteBytes(body)
		return w.Bytes(), nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(body, w.Bytes()), nil
}

func decodeData(magic uint32, data []byte, what string) ([]byte, error) {
	r := serialize.NewReader(data)
	if err := checkMagic(r, magic, what); err != nil {
		return nil, err
	}
	compressed := r.ReadBool()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, what, err)
	}
	rest := data[r.Pos():]
	if !compressed {
		return rest, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()
	body, err := dec.DecodeAll(rest, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, what, err)
	}
	return body, nil
}

func checkMagic(r *serialize.Reader, magic uint32, what string) error {
	got := r.ReadUint32()
	v := r.ReadEncodedInt()
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, what, err)
	}
	if got != magic {
		return fmt.Errorf("%w: %s: bad magic %#08x", ErrCorrupt, what, got)
	}
	if v < 1 || v > FormatVersion {
		return fmt.Errorf("%w: %s format %d", ErrUnsupportedFormat, what, v)
	}
	return nil
}
