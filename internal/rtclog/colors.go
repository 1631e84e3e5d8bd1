package rtclog

import "github.com/fatih/color"

// Per-level color, applied to the level letter and tag. color.Sprint is a
// no-op (and cheap) when color.NoColor is set, e.g. when stderr isn't a tty.
var levelColor = map[Level]*color.Color{
	Error: color.New(color.FgRed, color.Bold),
	Warn:  color.New(color.FgYellow),
	Info:  color.New(color.FgGreen),
	Debug: color.New(color.FgCyan),
}

func (l Level) color() *color.Color {
	if c, ok := levelColor[l]; ok {
		return c
	}
	return color.New(color.FgWhite)
}
