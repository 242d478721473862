package osenv

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// KelvinToRGB approximates the white point of a blackbody at the given
// temperature (Tanner Helland's fit). Channels are in [0,1].
func KelvinToRGB(kelvin int) (r, g, b float64) {
	temp := float64(kelvin) / 100

	var red, green, blue float64
	if temp <= 66 {
		red = 255
		green = 99.4708025861*math.Log(temp) - 161.1195681661
	} else {
		red = 329.698727446 * math.Pow(temp-60, -0.1332047592)
		green = 288.1221695283 * math.Pow(temp-60, -0.0755148492)
	}

	switch {
	case temp >= 66:
		blue = 255
	case temp <= 19:
		blue = 0
	default:
		blue = 138.5177312231*math.Log(temp-10) - 305.0447927307
	}

	return clamp255(red) / 255, clamp255(green) / 255, clamp255(blue) / 255
}

func clamp255(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// minGamma keeps a channel from going fully dark on very low temperatures
const minGamma = 0.1

// XrandrDisplay shifts color temperature with `xrandr --gamma`
type XrandrDisplay struct {
	output string // "" = every connected output
}

// NewXrandrDisplay creates a display controller for one output, or all
// connected outputs when output is empty
func NewXrandrDisplay(output string) *XrandrDisplay {
	return &XrandrDisplay{output: output}
}

// ApplyColorTemperature sets the gamma ramp for kelvin on every target output
func (d *XrandrDisplay) ApplyColorTemperature(kelvin int) error {
	r, g, b := KelvinToRGB(kelvin)
	return d.setGamma(r, g, b)
}

// ResetDisplay restores a neutral 1:1:1 gamma
func (d *XrandrDisplay) ResetDisplay() error {
	return d.setGamma(1, 1, 1)
}

func (d *XrandrDisplay) setGamma(r, g, b float64) error {
	ctx := context.Background()
	outputs, err := d.outputs(ctx)
	if err != nil {
		return err
	}
	gamma := fmt.Sprintf("%.3f:%.3f:%.3f", math.Max(r, minGamma), math.Max(g, minGamma), math.Max(b, minGamma))

	var firstErr error
	for _, out := range outputs {
		if _, err := run(ctx, "xrandr", "--output", out, "--gamma", gamma); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *XrandrDisplay) outputs(ctx context.Context) ([]string, error) {
	if d.output != "" {
		return []string{d.output}, nil
	}
	out, err := run(ctx, "xrandr", "--query")
	if err != nil {
		return nil, err
	}
	outputs := ParseConnectedOutputs(out)
	if len(outputs) == 0 {
		return nil, fmt.Errorf("no connected outputs: %w", ErrUnavailable)
	}
	return outputs, nil
}

// ParseConnectedOutputs extracts output names from `xrandr --query` output
func ParseConnectedOutputs(query string) []string {
	var outputs []string
	for _, line := range strings.Split(query, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "connected" {
			outputs = append(outputs, fields[0])
		}
	}
	return outputs
}
