// Command panelseq drives a display panel through its power sequence: it
// loads the YAML panel description, opens the configured transports and
// control lines, and runs the lifecycle steps with their command lists.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"panelseq/internal/config"
	"panelseq/internal/logging"
	"panelseq/internal/panel"
)

type flagConfig struct {
	configPath string
	mode       string
	debug      bool
}

func main() {
	flags := parseFlags()
	log := logging.New(flags.debug)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		log.Error().Err(err).Str("config_path", flags.configPath).Msg("failed to load config")
		os.Exit(1)
	}
	log.Info().Str("panel", cfg.Name).Str("mode", flags.mode).Msg("panelseq starting")

	p, cleanup, err := buildPanel(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to open hardware")
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("signal received, shutting down")
		cancel()
	}()

	if err := run(ctx, p, flags.mode, log); err != nil {
		log.Error().Err(err).Msg("sequence failed")
		os.Exit(1)
	}
	log.Info().Msg("panelseq done")
}

func run(ctx context.Context, p *panel.Panel, mode string, log zerolog.Logger) error {
	switch mode {
	case "up":
		return bringUp(p)
	case "down":
		return tearDown(p)
	case "cycle":
		if err := bringUp(p); err != nil {
			return err
		}
		log.Info().Msg("panel up, waiting for signal")
		<-ctx.Done()
		return tearDown(p)
	default:
		return fmt.Errorf("unknown mode %q (want up, down or cycle)", mode)
	}
}

func bringUp(p *panel.Panel) error {
	if err := p.PowerUp(); err != nil {
		return fmt.Errorf("power up: %w", err)
	}
	if err := p.Prepare(); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	if err := p.Enable(); err != nil {
		return fmt.Errorf("enable: %w", err)
	}
	return nil
}

func tearDown(p *panel.Panel) error {
	if err := p.Disable(); err != nil {
		return fmt.Errorf("disable: %w", err)
	}
	if err := p.Unprepare(); err != nil {
		return fmt.Errorf("unprepare: %w", err)
	}
	if err := p.PowerDown(); err != nil {
		return fmt.Errorf("power down: %w", err)
	}
	return nil
}

// buildPanel opens the transports and control lines named by the config
// and assembles the panel instance. The returned cleanup closes what was
// opened.
func buildPanel(cfg *config.Config, log zerolog.Logger) (*panel.Panel, func(), error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*panel.Panel, func(), error) {
		cleanup()
		return nil, nil, err
	}

	pc := panel.Config{
		Delays: panel.Delays{
			PowerUp:   time.Duration(cfg.Delays.PowerUpMS) * time.Millisecond,
			Prepare:   time.Duration(cfg.Delays.PrepareMS) * time.Millisecond,
			Enable:    time.Duration(cfg.Delays.EnableMS) * time.Millisecond,
			Disable:   time.Duration(cfg.Delays.DisableMS) * time.Millisecond,
			Unprepare: time.Duration(cfg.Delays.UnprepareMS) * time.Millisecond,
			PowerDown: time.Duration(cfg.Delays.PowerDownMS) * time.Millisecond,
		},
		Mode: cfg.Mode,
		Log:  log.With().Str("panel", cfg.Name).Logger(),
	}

	var err error
	if pc.Init, err = cfg.Init.Streams(); err != nil {
		return fail(fmt.Errorf("init streams: %w", err))
	}
	if pc.Enable, err = cfg.Enable.Streams(); err != nil {
		return fail(fmt.Errorf("enable streams: %w", err))
	}
	if pc.Disable, err = cfg.Disable.Streams(); err != nil {
		return fail(fmt.Errorf("disable streams: %w", err))
	}

	if tw := cfg.TwoWire; tw != nil {
		bus, err := i2creg.Open(tw.Bus)
		if err != nil {
			return fail(fmt.Errorf("open two-wire bus %q: %w", tw.Bus, err))
		}
		closers = append(closers, func() { _ = bus.Close() })
		if tw.FrequencyHz > 0 {
			if err := bus.SetSpeed(physic.Frequency(tw.FrequencyHz) * physic.Hertz); err != nil {
				return fail(fmt.Errorf("set two-wire speed: %w", err))
			}
		}
		pc.TwoWireBus = bus
		pc.TwoWireAddr = tw.Address
	}

	if se := cfg.Serial; se != nil {
		port, err := spireg.Open(se.Port)
		if err != nil {
			return fail(fmt.Errorf("open serial port %q: %w", se.Port, err))
		}
		closers = append(closers, func() { _ = port.Close() })
		freq := physic.Frequency(se.FrequencyHz) * physic.Hertz
		if freq == 0 {
			freq = 2 * physic.MegaHertz
		}
		// Marker framing is packed in software; the wire stays 8 bits wide.
		conn, err := port.Connect(freq, spi.Mode0, 8)
		if err != nil {
			return fail(fmt.Errorf("connect serial: %w", err))
		}
		pc.SerialConn = conn
		pc.SerialNineBit = se.FramingBits == 9
	}

	if ci := cfg.CommandIface; ci != nil {
		// The command-interface device comes from a platform driver; there
		// is no portable userspace handle to open here. Lane count still
		// drives the lane gates in the other streams.
		pc.Lanes = ci.Lanes
		log.Warn().Msg("command interface configured but no device driver is wired; its streams are skipped")
	}

	pc.ResetLine = pinByName(cfg.Lines.Reset, log)
	pc.PowerEnableLine = pinByName(cfg.Lines.PowerEnable, log)
	pc.PrepareEnableLine = pinByName(cfg.Lines.PrepareEnable, log)

	return panel.New(pc), cleanup, nil
}

func pinByName(name string, log zerolog.Logger) gpio.PinOut {
	if name == "" {
		return nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		log.Warn().Str("pin", name).Msg("gpio not found, line left unwired")
		return nil
	}
	return p
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/panelseq/panel.yaml", "Path to the panel description file")
	flag.StringVar(&cfg.mode, "mode", "up", "Sequence to run: up, down or cycle")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging of transfers and instructions")

	flag.Parse()

	return cfg
}
