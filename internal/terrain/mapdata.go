package terrain

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// MapDef holds metadata for a single map, loaded from map_list.yaml.
type MapDef struct {
	ID      int         `yaml:"map_id"`
	Name    string      `yaml:"name"`
	Width   int         `yaml:"width"`
	Height  int         `yaml:"height"`
	Land    string      `yaml:"land"`    // land file name inside the tile dir
	Statics string      `yaml:"statics"` // statics file name inside the tile dir
	Regions []RegionDef `yaml:"regions"`
}

// RegionDef is a named rectangle with movement rules. Locked and guarded
// boundaries cannot be crossed by any mover.
type RegionDef struct {
	Name    string `yaml:"name"`
	X       int    `yaml:"x"`
	Y       int    `yaml:"y"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Locked  bool   `yaml:"locked"`
	Guarded bool   `yaml:"guarded"`
}

// LoadedMap pairs a map definition with its tile grid.
type LoadedMap struct {
	Def  MapDef
	Grid *Grid
}

type mapListFile struct {
	Maps []MapDef `yaml:"maps"`
}

// LoadMapList loads map definitions from YAML and tile data from files in tileDir.
// A map whose tile files are missing loads as flat land at Z 0 (logged); a
// malformed tile file is an error.
func LoadMapList(yamlPath, tileDir string, log *zap.Logger) ([]LoadedMap, error) {
	if log == nil {
		log = zap.NewNop()
	}
	raw, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, fmt.Errorf("read map list %s: %w", yamlPath, err)
	}
	var file mapListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse map list: %w", err)
	}

	out := make([]LoadedMap, 0, len(file.Maps))
	seen := make(map[int]bool, len(file.Maps))
	for _, def := range file.Maps {
		if def.Width <= 0 || def.Height <= 0 {
			return nil, fmt.Errorf("map %d (%s): non-positive size %dx%d", def.ID, def.Name, def.Width, def.Height)
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("map %d declared twice", def.ID)
		}
		seen[def.ID] = true

		grid := NewGrid(def.Width, def.Height, LandTile{})
		if def.Land != "" {
			if err := loadLandFile(filepath.Join(tileDir, def.Land), grid); err != nil {
				if !os.IsNotExist(err) {
					return nil, fmt.Errorf("map %d land: %w", def.ID, err)
				}
				log.Warn("land file missing, map loads flat",
					zap.Int("map", def.ID), zap.String("file", def.Land))
			}
		}
		if def.Statics != "" {
			if err := loadStaticsFile(filepath.Join(tileDir, def.Statics), grid); err != nil {
				if !os.IsNotExist(err) {
					return nil, fmt.Errorf("map %d statics: %w", def.ID, err)
				}
				log.Warn("statics file missing", zap.Int("map", def.ID), zap.String("file", def.Statics))
			}
		}
		out = append(out, LoadedMap{Def: def, Grid: grid})
	}
	return out, nil
}

// loadLandFile reads a CSV land file: each line is a row (Y) of
// comma-separated "id:z" cells (X). Lines starting with '#' are comments.
func loadLandFile(path string, g *Grid) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	y := 0
	for scanner.Scan() && y < g.Height() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		x := 0
		for _, tok := range strings.Split(line, ",") {
			if x >= g.Width() {
				break
			}
			t, err := parseLandCell(strings.TrimSpace(tok))
			if err != nil {
				return fmt.Errorf("%s row %d col %d: %w", path, y, x, err)
			}
			g.SetLand(x, y, t)
			x++
		}
		y++
	}
	return scanner.Err()
}

func parseLandCell(tok string) (LandTile, error) {
	idStr, zStr, found := strings.Cut(tok, ":")
	id, err := strconv.ParseUint(idStr, 0, 16)
	if err != nil {
		return LandTile{}, fmt.Errorf("land id %q: %w", idStr, err)
	}
	var z int64
	if found {
		z, err = strconv.ParseInt(zStr, 10, 8)
		if err != nil {
			return LandTile{}, fmt.Errorf("land z %q: %w", zStr, err)
		}
	}
	return LandTile{ID: uint16(id), Z: int8(z)}, nil
}

// loadStaticsFile reads "x,y,id,z" lines.
func loadStaticsFile(path string, g *Grid) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 4 {
			return fmt.Errorf("%s:%d: want x,y,id,z", path, lineNo)
		}
		var vals [4]int64
		for i, p := range parts {
			v, err := strconv.ParseInt(strings.TrimSpace(p), 0, 32)
			if err != nil {
				return fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			vals[i] = v
		}
		g.AddStatic(int(vals[0]), int(vals[1]), StaticTile{ID: uint16(vals[2]), Z: int8(vals[3])})
	}
	return scanner.Err()
}
