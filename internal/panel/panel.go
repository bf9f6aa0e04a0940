// Package panel implements the panel lifecycle: the five-step power
// sequence (power up, prepare, enable, disable, unprepare, power down) and
// the per-phase orchestration of vendor command lists over the two-wire,
// command-interface and serial transports.
package panel

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/spi"

	"panelseq/internal/bitstream"
	"panelseq/internal/transport"
)

// Phase names one point in the lifecycle where command lists run.
type Phase string

const (
	PhaseInit    Phase = "init"
	PhaseEnable  Phase = "enable"
	PhaseDisable Phase = "disable"
)

// Streams holds the three per-transport command lists of one phase. A nil
// or empty stream is a no-op for that transport.
type Streams struct {
	TwoWire      []byte
	CommandIface []byte
	Serial       []byte
}

// Delays are the per-panel settle times around each lifecycle step.
type Delays struct {
	PowerUp   time.Duration
	Prepare   time.Duration
	Enable    time.Duration
	Disable   time.Duration
	Unprepare time.Duration
	PowerDown time.Duration
}

// Supply controls the panel's voltage rail.
type Supply interface {
	Enable() error
	Disable() error
}

// Backlight switches the panel backlight.
type Backlight interface {
	SetPower(on bool) error
}

// Config describes one panel instance. Transport handles may be nil: an
// absent handle makes that transport's streams no-ops. Control lines may
// be nil when the board does not wire them.
type Config struct {
	Mode   Mode
	Delays Delays

	TwoWireBus    i2c.Bus
	TwoWireAddr   uint16
	SerialConn    spi.Conn
	SerialNineBit bool
	CommandDev    transport.DCS
	Lanes         int

	Init    Streams
	Enable  Streams
	Disable Streams

	ResetLine         gpio.PinOut
	PowerEnableLine   gpio.PinOut
	PrepareEnableLine gpio.PinOut
	Supply            Supply
	Backlight         Backlight

	Clock clockwork.Clock
	Log   zerolog.Logger
}

// Panel is one panel instance. It is not safe for concurrent use: callers
// must serialize lifecycle calls around the whole instance.
type Panel struct {
	cfg   Config
	clock clockwork.Clock
	log   zerolog.Logger

	acc      bitstream.Accumulator
	twoWire  transport.Backend
	cmdIface transport.Backend
	serial   transport.Backend

	prepared bool
	enabled  bool
}

// New builds a panel from its configuration. Transport backends are
// constructed here so that the staging buffers belong to exactly this
// instance.
func New(cfg Config) *Panel {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	p := &Panel{cfg: cfg, clock: cfg.Clock, log: cfg.Log}
	if cfg.TwoWireBus != nil {
		p.twoWire = transport.NewTwoWire(cfg.TwoWireBus, cfg.TwoWireAddr, cfg.Clock,
			cfg.Log.With().Str("transport", "two-wire").Logger())
	}
	if cfg.CommandDev != nil {
		p.cmdIface = transport.NewCommandIface(cfg.CommandDev,
			cfg.Log.With().Str("transport", "command-interface").Logger())
	}
	if cfg.SerialConn != nil {
		p.serial = transport.NewSerial(cfg.SerialConn, cfg.SerialNineBit, &p.acc,
			cfg.Log.With().Str("transport", "serial").Logger())
	}
	return p
}

// Prepared reports whether the panel completed the prepare step.
func (p *Panel) Prepared() bool { return p.prepared }

// Enabled reports whether the panel is showing an image.
func (p *Panel) Enabled() bool { return p.enabled }

func (p *Panel) sleep(d time.Duration) {
	if d > 0 {
		p.clock.Sleep(d)
	}
}

func assertLine(pin gpio.PinOut) {
	if pin != nil {
		_ = pin.Out(gpio.High)
	}
}

func deassertLine(pin gpio.PinOut) {
	if pin != nil {
		_ = pin.Out(gpio.Low)
	}
}
