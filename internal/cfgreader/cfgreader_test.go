package cfgreader

import (
	"strings"
	"testing"
)

func TestRead_BasicSettings(t *testing.T) {
	src := "clock_hz = 3500000\n# a comment\n! another comment\nname = spectrum\n"
	c, err := Read(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := c.Int("clock_hz"); got != 3500000 {
		t.Errorf("Int(clock_hz) = %d, want 3500000", got)
	}
	if got := c.Double("clock_hz"); got != 3500000 {
		t.Errorf("Double(clock_hz) = %v, want 3500000", got)
	}
	if got := c.String("name"); got != "spectrum" {
		t.Errorf("String(name) = %q, want spectrum", got)
	}
	if c.Exists("comment") {
		t.Errorf("comment lines must not become settings")
	}
}

func TestRead_NonNumericValueDefaultsToZero(t *testing.T) {
	c, err := Read(strings.NewReader("rom_path=bios.rom\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := c.Int("rom_path"); got != 0 {
		t.Errorf("Int(rom_path) = %d, want 0 (atoi-equivalent on non-numeric value)", got)
	}
	if got := c.String("rom_path"); got != "bios.rom" {
		t.Errorf("String(rom_path) = %q, want bios.rom", got)
	}
}

func TestRead_MissingSettingReturnsZeroValue(t *testing.T) {
	c, _ := Read(strings.NewReader(""))
	if c.Exists("nope") {
		t.Errorf("Exists(nope) = true, want false")
	}
	if c.Int("nope") != 0 || c.Double("nope") != 0 || c.String("nope") != "" {
		t.Errorf("missing setting did not return zero values")
	}
}

func TestRead_LaterDuplicateOverwrites(t *testing.T) {
	c, _ := Read(strings.NewReader("x=1\nx=2\n"))
	if got := c.Int("x"); got != 2 {
		t.Errorf("Int(x) = %d, want 2 (later assignment wins)", got)
	}
}

func TestMemDevRegions(t *testing.T) {
	c, _ := Read(strings.NewReader("memdev0=0x0000,0x4000,0,1\nmemdev1=0x4000,0x4000,1,1\n"))
	regions, err := c.MemDevRegions()
	if err != nil {
		t.Fatalf("MemDevRegions: %v", err)
	}
	if len(regions) != 2 {
		t.Fatalf("len(regions) = %d, want 2", len(regions))
	}
	if regions[0].Start != 0 || regions[0].Length != 0x4000 || !regions[0].ReadEnable || regions[0].WriteEnable {
		t.Errorf("regions[0] = %+v, want ROM at 0x0000 len 0x4000 RO", regions[0])
	}
	if regions[1].Start != 0x4000 || !regions[1].WriteEnable {
		t.Errorf("regions[1] = %+v, want RAM at 0x4000 RW", regions[1])
	}
}

func TestMemDevRegions_InvalidSpec(t *testing.T) {
	c, _ := Read(strings.NewReader("memdev0=not,enough,fields\n"))
	if _, err := c.MemDevRegions(); err == nil {
		t.Errorf("expected error for malformed memdev spec")
	}
}
