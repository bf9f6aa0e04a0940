package panel

import (
	"fmt"

	"panelseq/internal/cmdlist"
	"panelseq/internal/transport"
)

// runPhase executes the phase's command lists in fixed order: two-wire,
// then command interface, then serial, stopping at the first failure. A
// stream whose transport handle is absent is not processed at all.
func (p *Panel) runPhase(ph Phase) error {
	var s Streams
	switch ph {
	case PhaseInit:
		s = p.cfg.Init
	case PhaseEnable:
		s = p.cfg.Enable
	case PhaseDisable:
		s = p.cfg.Disable
	}

	if p.twoWire != nil {
		if err := p.runStream(ph, "two-wire", s.TwoWire, p.twoWire); err != nil {
			return err
		}
	}
	if p.cmdIface != nil {
		if err := p.runStream(ph, "command-interface", s.CommandIface, p.cmdIface); err != nil {
			return err
		}
	}
	if p.serial != nil {
		p.acc.Reset()
		if err := p.runStream(ph, "serial", s.Serial, p.serial); err != nil {
			return err
		}
	}
	return nil
}

func (p *Panel) runStream(ph Phase, name string, stream []byte, b transport.Backend) error {
	if len(stream) == 0 {
		return nil
	}
	log := p.log.With().Str("phase", string(ph)).Str("transport", name).Logger()
	env := cmdlist.Env{
		Lanes:  p.cfg.Lanes,
		Timing: p.cfg.Mode,
		Clock:  p.clock,
		Log:    log,
	}
	if err := cmdlist.Run(stream, b, env); err != nil {
		return fmt.Errorf("%s %s stream: %w", ph, name, err)
	}
	return nil
}
