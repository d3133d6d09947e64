// Package orchestrator implements the mode state machine that wires the
// signal fabric, memory controller, oscillator and CPU together: Normal
// mode loads a BIOS image and runs the CPU off the oscillator until
// Failure or a tick budget is exhausted; Decompile mode drains the
// disassembler over a flat byte image; Test mode exercises CLCK alone.
package orchestrator

import (
	"errors"
	"fmt"
	"os"

	"github.com/z0x50/z0x50/clock"
	"github.com/z0x50/z0x50/disasm"
	"github.com/z0x50/z0x50/internal/cfgreader"
	"github.com/z0x50/z0x50/memory"
	"github.com/z0x50/z0x50/romloader"
	"github.com/z0x50/z0x50/signal"
	"github.com/z0x50/z0x50/z80"
)

// Mode is the orchestrator's phase: None, Normal, Test or Decompile.
type Mode int

const (
	ModeNone Mode = iota
	ModeNormal
	ModeTest
	ModeDecompile
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "Normal"
	case ModeTest:
		return "Test"
	case ModeDecompile:
		return "Decompile"
	default:
		return "None"
	}
}

// Logger is the minimal logging surface the orchestrator needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// ErrMissingBIOSKey is returned when Normal mode's config lacks bios_rom.
var ErrMissingBIOSKey = errors.New("orchestrator: required config key bios_rom missing")

const defaultTickBudget = 1_000_000
const defaultTestToggleCount = 10

// Orchestrator wires the signal fabric, memory controller, oscillator and
// CPU together and runs one of the three modes to completion.
type Orchestrator struct {
	log Logger

	Fabric *signal.Fabric
	Mem    *memory.Controller
	Clock  *clock.Oscillator
	CPU    *z80.CPU

	Mode Mode
}

// New wires a fresh machine. If log is nil, messages are discarded.
func New(log Logger) *Orchestrator {
	if log == nil {
		log = nopLogger{}
	}
	f := signal.New()
	mem := memory.NewController(log)
	o := &Orchestrator{
		log:    log,
		Fabric: f,
		Mem:    mem,
		Mode:   ModeNone,
	}
	return o
}

// subscribeMem attaches the memory controller to the fabric. Devices must
// subscribe before the CPU so a genuine bus write (loadBIOS) lands before
// the CPU's own CLCK subscriber starts driving RD.
func (o *Orchestrator) subscribeMem() error {
	_, err := o.Mem.Subscribe(o.Fabric)
	return err
}

// startCPU wires the CPU and oscillator and arms the CPU's first fetch
// cycle. freqMHz is the oscillator frequency in MHz; clock.New wants Hz.
func (o *Orchestrator) startCPU(freqMHz float64) error {
	o.CPU = z80.New(o.Fabric, o.log)
	if err := o.CPU.Init(); err != nil {
		return err
	}
	o.Clock = clock.New(o.Fabric, freqMHz*1e6)
	return nil
}

// init subscribes the memory controller and starts the CPU/oscillator in
// one step, for modes (Test) that have no bus traffic to race against CPU
// startup.
func (o *Orchestrator) init(freqMHz float64) error {
	if err := o.subscribeMem(); err != nil {
		return err
	}
	return o.startCPU(freqMHz)
}

// RunNormal loads the BIOS image named by cfg's bios_rom key and the
// memdev regions cfg describes, then ticks the oscillator until the CPU
// latches Failure or defaultTickBudget ticks are exhausted.
func (o *Orchestrator) RunNormal(cfg *cfgreader.Config) error {
	o.Mode = ModeNormal
	o.log.Infof("orchestrator: entering Normal mode")

	if !cfg.Exists("bios_rom") {
		o.Mode = ModeNone
		return ErrMissingBIOSKey
	}
	biosPath := cfg.String("bios_rom")
	biosAddr := uint16(cfg.Int("bios_address"))

	regions, err := cfg.MemDevRegions()
	if err != nil {
		o.log.Warnf("orchestrator: %v", err)
	}
	for _, r := range regions {
		if err := o.Mem.AddRegion(r); err != nil {
			o.log.Warnf("orchestrator: region rejected: %v", err)
		}
	}

	bios, _, err := romloader.LoadROM(biosPath)
	if err != nil {
		o.Mode = ModeNone
		return fmt.Errorf("orchestrator: BIOS load failed: %w", err)
	}
	if err := o.Mem.AddRegion(memory.Region{Start: biosAddr, Length: uint16(len(bios)), ReadEnable: true, WriteEnable: true}); err != nil {
		o.log.Warnf("orchestrator: BIOS region rejected: %v", err)
	}

	// The BIOS region must be registered and the memory controller
	// subscribed to CLCK, but the CPU must not be started yet: once the
	// CPU's own CLCK subscriber is live it asserts RD on its first rising
	// edge and drops it only on a falling edge, which loadBIOS never
	// produces. RD takes precedence over WR in the memory controller, which would
	// swallow every byte after the first as a stray read instead of a
	// write. loadBIOS drives the bus directly while the CPU is still
	// absent, so every byte actually lands via a genuine write cycle.
	if err := o.subscribeMem(); err != nil {
		o.Mode = ModeNone
		return err
	}
	o.loadBIOS(bios, biosAddr)

	freq := cfg.Double("oscillator_freq")
	if err := o.startCPU(freq); err != nil {
		o.Mode = ModeNone
		return err
	}

	budget := defaultTickBudget
	for i := 0; i < budget; i++ {
		o.Clock.Tick()
		if o.CPU.State() == z80.StateFailure {
			o.log.Warnf("orchestrator: CPU latched Failure after %d ticks", i)
			break
		}
	}
	return nil
}

// loadBIOS bypasses the CPU's write-cycle machinery entirely and drives
// the memory controller's CLCK handler directly, one byte at a time, with
// MREQ/WR asserted around the whole transfer.
func (o *Orchestrator) loadBIOS(bios []byte, base uint16) {
	o.Fabric.Raise(signal.MREQ)
	o.Fabric.Raise(signal.WR)
	for i, b := range bios {
		o.Fabric.SetAddress(base + uint16(i))
		o.Fabric.SetData(b)
		o.Fabric.Raise(signal.CLCK)
	}
	o.Fabric.Drop(signal.MREQ)
	o.Fabric.Drop(signal.WR)
}

// RunTest toggles CLCK a fixed number of times without loading a program.
func (o *Orchestrator) RunTest() error {
	o.Mode = ModeTest
	o.log.Infof("orchestrator: entering Test mode")
	if err := o.init(1.0); err != nil {
		o.Mode = ModeNone
		return err
	}
	for i := 0; i < defaultTestToggleCount; i++ {
		if i%2 == 0 {
			o.Fabric.Raise(signal.CLCK)
		} else {
			o.Fabric.Drop(signal.CLCK)
		}
	}
	return nil
}

// RunDecompile disassembles path as a flat byte image and writes one
// "%04X\t%s"-formatted line per record to out, logging any warnings.
func (o *Orchestrator) RunDecompile(path string, out *os.File) error {
	o.Mode = ModeDecompile
	o.log.Infof("orchestrator: entering Decompile mode")

	data, err := os.ReadFile(path)
	if err != nil {
		o.Mode = ModeNone
		return fmt.Errorf("orchestrator: decompile source unreadable: %w", err)
	}

	mem := memory.NewController(o.log)
	if err := mem.AddRegion(memory.Region{Start: 0, Length: uint16(len(data)), ReadEnable: true, Bytes: data}); err != nil {
		return err
	}

	d := disasm.New(mem)
	records, warnings := d.Sweep(0, uint16(len(data)))
	for _, r := range records {
		fmt.Fprintln(out, r.Format())
	}
	for _, w := range warnings {
		o.log.Warnf("orchestrator: disassembly warning at %#04x: %s", w.Index, w.Reason)
	}
	return nil
}
