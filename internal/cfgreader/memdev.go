package cfgreader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/z0x50/z0x50/memory"
)

// MemDevRegions parses every memdev<N> setting into a memory.Region. Each
// value is a comma-separated "start,length,writable,readable" spec, e.g.
// memdev0=0x0000,0x4000,0,1 for a 16K read-only ROM at address 0.
func (c *Config) MemDevRegions() ([]memory.Region, error) {
	var regions []memory.Region
	for _, name := range c.Names("memdev") {
		spec := c.String(name)
		r, err := parseMemDevSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("cfgreader: %s=%q: %w", name, spec, err)
		}
		regions = append(regions, r)
	}
	return regions, nil
}

func parseMemDevSpec(spec string) (memory.Region, error) {
	fields := strings.Split(spec, ",")
	if len(fields) != 4 {
		return memory.Region{}, fmt.Errorf("expected start,length,writable,readable, got %d fields", len(fields))
	}
	start, err := parseUint16(fields[0])
	if err != nil {
		return memory.Region{}, fmt.Errorf("start: %w", err)
	}
	length, err := parseUint16(fields[1])
	if err != nil {
		return memory.Region{}, fmt.Errorf("length: %w", err)
	}
	writeEnable, err := parseBool01(fields[2])
	if err != nil {
		return memory.Region{}, fmt.Errorf("writable: %w", err)
	}
	readEnable, err := parseBool01(fields[3])
	if err != nil {
		return memory.Region{}, fmt.Errorf("readable: %w", err)
	}
	return memory.Region{Start: start, Length: length, ReadEnable: readEnable, WriteEnable: writeEnable}, nil
}

func parseUint16(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), hexOrDec(s), 32)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func hexOrDec(s string) int {
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		return 16
	}
	return 10
}

func parseBool01(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected 0 or 1, got %q", s)
	}
}
