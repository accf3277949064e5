package terrain

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Flag is the tiledata flag word attached to every land and item graphic.
type Flag uint64

// Tile flag constants matching the client's tiledata.mul bit layout.
const (
	Background  Flag = 0x00000001
	Weapon      Flag = 0x00000002
	Transparent Flag = 0x00000004
	Translucent Flag = 0x00000008
	Wall        Flag = 0x00000010
	Damaging    Flag = 0x00000020
	Impassable  Flag = 0x00000040
	Wet         Flag = 0x00000080
	Surface     Flag = 0x00000200
	Bridge      Flag = 0x00000400
	Generic     Flag = 0x00000800
	Window      Flag = 0x00001000
	NoShoot     Flag = 0x00002000
	Foliage     Flag = 0x00020000
	Container   Flag = 0x00200000
	Wearable    Flag = 0x00400000
	LightSource Flag = 0x00800000
	NoDiagonal  Flag = 0x02000000
	Roof        Flag = 0x10000000
	Door        Flag = 0x20000000
	StairBack   Flag = 0x40000000
	StairRight  Flag = 0x80000000

	// ImpassableSurface is the mask the movement code tests against: a tile
	// either blocks, offers a surface, or neither.
	ImpassableSurface = Impassable | Surface
)

var flagNames = map[string]Flag{
	"background":  Background,
	"weapon":      Weapon,
	"transparent": Transparent,
	"translucent": Translucent,
	"wall":        Wall,
	"damaging":    Damaging,
	"impassable":  Impassable,
	"wet":         Wet,
	"surface":     Surface,
	"bridge":      Bridge,
	"generic":     Generic,
	"window":      Window,
	"noshoot":     NoShoot,
	"foliage":     Foliage,
	"container":   Container,
	"wearable":    Wearable,
	"lightsource": LightSource,
	"nodiagonal":  NoDiagonal,
	"roof":        Roof,
	"door":        Door,
	"stairback":   StairBack,
	"stairright":  StairRight,
}

// ParseFlags converts tiledata flag names (case-insensitive) into a Flag word.
func ParseFlags(names []string) (Flag, error) {
	var f Flag
	for _, n := range names {
		v, ok := flagNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, fmt.Errorf("unknown tile flag %q", n)
		}
		f |= v
	}
	return f, nil
}

// LandData describes a land (terrain) graphic.
type LandData struct {
	Name  string
	Flags Flag
}

// ItemData describes a static or item graphic.
type ItemData struct {
	Name   string
	Flags  Flag
	Height int
}

func (d ItemData) Impassable() bool { return d.Flags&Impassable != 0 }
func (d ItemData) Surface() bool    { return d.Flags&Surface != 0 }
func (d ItemData) Wet() bool        { return d.Flags&Wet != 0 }
func (d ItemData) Bridge() bool     { return d.Flags&Bridge != 0 }
func (d ItemData) Door() bool       { return d.Flags&Door != 0 }

// CalcHeight is the walkable height of the graphic: bridges (stairs, ramps)
// count half their height so a mover can climb them one step at a time.
func (d ItemData) CalcHeight() int {
	if d.Bridge() {
		return d.Height / 2
	}
	return d.Height
}

// TileData is the flag table for all land and item graphics.
// Read-only once loaded; safe for concurrent readers.
type TileData struct {
	land  map[uint16]LandData
	items map[uint16]ItemData
}

func NewTileData() *TileData {
	return &TileData{
		land:  make(map[uint16]LandData, 64),
		items: make(map[uint16]ItemData, 256),
	}
}

// Land returns the data for a land id; unknown ids yield the zero value.
func (t *TileData) Land(id uint16) LandData {
	return t.land[id&MaxLandValue]
}

// Item returns the data for an item id; unknown ids yield the zero value.
func (t *TileData) Item(id uint16) ItemData {
	return t.items[id]
}

func (t *TileData) SetLand(id uint16, d LandData) { t.land[id&MaxLandValue] = d }
func (t *TileData) SetItem(id uint16, d ItemData) { t.items[id] = d }

// Counts returns the number of land and item entries.
func (t *TileData) Counts() (land, items int) { return len(t.land), len(t.items) }

// MaxLandValue bounds land graphic ids.
const MaxLandValue = 0x3FFF

type tileDataFile struct {
	Land []struct {
		ID    uint16   `yaml:"id"`
		Name  string   `yaml:"name"`
		Flags []string `yaml:"flags"`
	} `yaml:"land"`
	Items []struct {
		ID     uint16   `yaml:"id"`
		Name   string   `yaml:"name"`
		Flags  []string `yaml:"flags"`
		Height int      `yaml:"height"`
	} `yaml:"items"`
}

// LoadTileData reads the tiledata table from YAML.
func LoadTileData(path string) (*TileData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tiledata %s: %w", path, err)
	}
	return ParseTileData(raw)
}

// ParseTileData decodes a YAML tiledata document.
func ParseTileData(raw []byte) (*TileData, error) {
	var file tileDataFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse tiledata: %w", err)
	}
	td := NewTileData()
	for _, l := range file.Land {
		f, err := ParseFlags(l.Flags)
		if err != nil {
			return nil, fmt.Errorf("land 0x%X: %w", l.ID, err)
		}
		td.SetLand(l.ID, LandData{Name: l.Name, Flags: f})
	}
	for _, it := range file.Items {
		f, err := ParseFlags(it.Flags)
		if err != nil {
			return nil, fmt.Errorf("item 0x%X: %w", it.ID, err)
		}
		td.SetItem(it.ID, ItemData{Name: it.Name, Flags: f, Height: it.Height})
	}
	return td, nil
}
