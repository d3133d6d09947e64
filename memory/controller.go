package memory

import "github.com/z0x50/z0x50/signal"

// Logger is the minimal logging surface the controller needs; satisfied by
// *logrus.Logger and *logrus.Entry.
type Logger interface {
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{}) {}

// Controller is the memory subsystem: a registry of up to MaxRegions
// regions that responds to bus transactions on every CLCK edge.
type Controller struct {
	regions []Region
	log     Logger
}

// NewController returns an empty controller. If log is nil, allocation
// failures and skipped regions are silently discarded rather than logged.
func NewController(log Logger) *Controller {
	if log == nil {
		log = nopLogger{}
	}
	return &Controller{log: log}
}

// AddRegion registers a new region. Invalid regions and an over-full
// registry are refused with a logged warning rather than a panic, so a
// single bad config entry doesn't abort the whole machine; the error
// return lets callers and tests observe the same outcome.
func (c *Controller) AddRegion(r Region) error {
	if err := validate(r); err != nil {
		c.log.Warnf("memory: refusing region: %v", err)
		return err
	}
	if len(c.regions) >= MaxRegions {
		c.log.Warnf("memory: %v", ErrTooManyRegions)
		return ErrTooManyRegions
	}
	if r.Bytes == nil {
		r.Bytes = make([]byte, r.Length)
	}
	c.regions = append(c.regions, r)
	return nil
}

// Regions returns the registered regions in registration order. Callers
// must not mutate the returned slice's Region values' Start/Length/flags;
// Bytes may be written through for test setup.
func (c *Controller) Regions() []Region {
	return c.regions
}

// Subscribe attaches the controller's CLCK handler to the fabric. Devices
// must subscribe before the CPU during machine setup so data placed on the
// bus during T1-fall is visible to the CPU at T2-fall of the same edge
// sequence.
func (c *Controller) Subscribe(f *signal.Fabric) (signal.Handle, error) {
	return f.Subscribe(signal.CLCK, func(rising bool) {
		c.onCLCK(f)
	})
}

// onCLCK fires on every edge: if MREQ is asserted, RD takes precedence
// over WR; when neither is asserted the cycle is a no-op; when MREQ is
// inactive the controller is quiescent regardless of the edge.
func (c *Controller) onCLCK(f *signal.Fabric) {
	if !f.Read(signal.MREQ) {
		return
	}
	addr := f.Address()
	if f.Read(signal.RD) {
		for _, r := range c.regions {
			if r.ReadEnable && r.covers(addr) {
				f.SetData(r.Bytes[addr-r.Start])
				return
			}
		}
		return
	}
	if f.Read(signal.WR) {
		data := f.Data()
		for i := range c.regions {
			r := &c.regions[i]
			if r.WriteEnable && r.covers(addr) {
				r.Bytes[addr-r.Start] = data
			}
		}
	}
}

// RawRead bypasses bus signalling for the UI/disassembler observer: it
// returns the first matching readable region's byte, or zero if none
// covers addr.
func (c *Controller) RawRead(addr uint16) uint8 {
	for _, r := range c.regions {
		if r.ReadEnable && r.covers(addr) {
			return r.Bytes[addr-r.Start]
		}
	}
	return 0
}
