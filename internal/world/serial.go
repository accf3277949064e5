package world

import "fmt"

// Serial is the stable identifier of a mobile or item. Mobiles and items use
// disjoint ranges; zero and negative values mean "no entity".
type Serial int32

const (
	MinusOne Serial = -1
	Zero     Serial = 0

	MinMobileSerial Serial = 0x00000001
	MaxMobileSerial Serial = 0x3FFFFFFF
	MinItemSerial   Serial = 0x40000000
	MaxItemSerial   Serial = 0x7FFFFFFF
)

func (s Serial) IsMobile() bool { return s >= MinMobileSerial && s <= MaxMobileSerial }
func (s Serial) IsItem() bool   { return s >= MinItemSerial && s <= MaxItemSerial }
func (s Serial) IsValid() bool  { return s > 0 }

func (s Serial) String() string { return fmt.Sprintf("0x%08X", int32(s)) }

// Kind distinguishes the two entity families.
type Kind uint8

const (
	KindMobile Kind = iota + 1
	KindItem
)

func (k Kind) String() string {
	switch k {
	case KindMobile:
		return "mobile"
	case KindItem:
		return "item"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// serialRange returns the inclusive Serial range for k.
func (k Kind) serialRange() (lo, hi Serial) {
	if k == KindItem {
		return MinItemSerial, MaxItemSerial
	}
	return MinMobileSerial, MaxMobileSerial
}

// KindOf classifies s by range. Invalid serials report 0.
func KindOf(s Serial) Kind {
	switch {
	case s.IsMobile():
		return KindMobile
	case s.IsItem():
		return KindItem
	default:
		return 0
	}
}
