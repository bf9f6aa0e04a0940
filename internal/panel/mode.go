package panel

// Mode is the panel's negotiated display timing, stored the way a display
// stack hands it over: absolute sync positions against the total. The
// accessor methods derive the quantities patch instructions consume.
type Mode struct {
	HDisplay   int `yaml:"hdisplay"`
	HSyncStart int `yaml:"hsync_start"`
	HSyncEnd   int `yaml:"hsync_end"`
	HTotal     int `yaml:"htotal"`

	VDisplay   int `yaml:"vdisplay"`
	VSyncStart int `yaml:"vsync_start"`
	VSyncEnd   int `yaml:"vsync_end"`
	VTotal     int `yaml:"vtotal"`

	// Clock polarity flags, carried for integrators that program them into
	// vendor registers via constant patches.
	HSyncLow bool `yaml:"hsync_low"`
	VSyncLow bool `yaml:"vsync_low"`
}

func (m Mode) HActive() int     { return m.HDisplay }
func (m Mode) HSyncWidth() int  { return m.HSyncEnd - m.HSyncStart }
func (m Mode) HFrontPorch() int { return m.HSyncStart - m.HDisplay }
func (m Mode) HBackPorch() int  { return m.HTotal - m.HSyncEnd }

func (m Mode) VActive() int     { return m.VDisplay }
func (m Mode) VSyncWidth() int  { return m.VSyncEnd - m.VSyncStart }
func (m Mode) VFrontPorch() int { return m.VSyncStart - m.VDisplay }
func (m Mode) VBackPorch() int  { return m.VTotal - m.VSyncEnd }
