package panel

import "fmt"

// PowerUp asserts the power-enable line and waits the settle delay.
func (p *Panel) PowerUp() error {
	assertLine(p.cfg.PowerEnableLine)
	p.sleep(p.cfg.Delays.PowerUp)
	return nil
}

// PowerDown waits the settle delay and drops the power-enable line.
func (p *Panel) PowerDown() error {
	p.sleep(p.cfg.Delays.PowerDown)
	deassertLine(p.cfg.PowerEnableLine)
	return nil
}

// Prepare brings the panel out of reset and runs the init-phase command
// lists. A failing init phase unwinds the lines, disables the supply and
// leaves the panel unprepared.
func (p *Panel) Prepare() error {
	if p.prepared {
		return nil
	}

	if p.cfg.Supply != nil {
		if err := p.cfg.Supply.Enable(); err != nil {
			return fmt.Errorf("enable supply: %w", err)
		}
	}
	assertLine(p.cfg.PrepareEnableLine)
	deassertLine(p.cfg.ResetLine)
	p.sleep(p.cfg.Delays.Prepare)

	if err := p.runPhase(PhaseInit); err != nil {
		assertLine(p.cfg.ResetLine)
		deassertLine(p.cfg.PrepareEnableLine)
		if p.cfg.Supply != nil {
			_ = p.cfg.Supply.Disable()
		}
		return err
	}

	p.prepared = true
	return nil
}

// Enable runs the enable-phase command lists, waits the settle delay and
// turns the backlight on. On failure the lines are unwound and the error
// reported; there is no retry.
func (p *Panel) Enable() error {
	if p.enabled {
		return nil
	}

	if err := p.runPhase(PhaseEnable); err != nil {
		assertLine(p.cfg.ResetLine)
		deassertLine(p.cfg.PrepareEnableLine)
		return err
	}
	p.sleep(p.cfg.Delays.Enable)

	if p.cfg.Backlight != nil {
		if err := p.cfg.Backlight.SetPower(true); err != nil {
			p.log.Error().Err(err).Msg("backlight on failed")
		}
	}

	p.enabled = true
	return nil
}

// Disable turns the backlight off, waits the settle delay and runs the
// disable-phase command lists. Command failures are logged, not fatal:
// teardown must proceed.
func (p *Panel) Disable() error {
	if !p.enabled {
		return nil
	}

	if p.cfg.Backlight != nil {
		if err := p.cfg.Backlight.SetPower(false); err != nil {
			p.log.Error().Err(err).Msg("backlight off failed")
		}
	}
	p.sleep(p.cfg.Delays.Disable)

	if err := p.runPhase(PhaseDisable); err != nil {
		p.log.Error().Err(err).Msg("disable phase failed, continuing teardown")
	}

	p.enabled = false
	return nil
}

// Unprepare puts the panel back into reset and cuts the supply.
func (p *Panel) Unprepare() error {
	if !p.prepared {
		return nil
	}

	p.sleep(p.cfg.Delays.Unprepare)
	assertLine(p.cfg.ResetLine)
	deassertLine(p.cfg.PrepareEnableLine)
	if p.cfg.Supply != nil {
		if err := p.cfg.Supply.Disable(); err != nil {
			return fmt.Errorf("disable supply: %w", err)
		}
	}

	p.prepared = false
	return nil
}
