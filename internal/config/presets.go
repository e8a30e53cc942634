package config

var Presets = map[string]map[string]*Config{
	"pendulum": {
		"swing": {
			Model: "pendulum", OdeSolver: "RK4", ControlType: "constant", Backend: "dual",
			FinalTime: 1.0, NShooting: 20, Steps: 5, NThreads: 1,
			InitState: []float64{0.5, 0.0}, Controls: []float64{0.0}, Params: []float64{1.0},
		},
		"accurate": {
			Model: "pendulum", OdeSolver: "RK8", ControlType: "constant", Backend: "dual",
			FinalTime: 2.0, NShooting: 10, Steps: 2, NThreads: 2,
			InitState: []float64{2.5, 0.0}, Controls: []float64{0.0}, Params: []float64{1.0},
		},
		"collocation": {
			Model: "pendulum", OdeSolver: "IRK", ControlType: "constant", Backend: "dual",
			FinalTime: 1.0, NShooting: 10, Degree: 4, NThreads: 4,
			InitState: []float64{0.5, 0.0}, Controls: []float64{0.5}, Params: []float64{1.0},
		},
		"ramp": {
			Model: "pendulum", OdeSolver: "RK4", ControlType: "linear_continuous", Backend: "dual",
			FinalTime: 1.0, NShooting: 20, Steps: 5, NThreads: 2,
			InitState: []float64{0.0, 0.0}, Controls: []float64{2.0}, Params: []float64{1.0},
		},
	},
	"freebody": {
		"tumble": {
			Model: "freebody", OdeSolver: "RK4", ControlType: "constant", Backend: "dual",
			FinalTime: 2.0, NShooting: 20, Steps: 5, NThreads: 4,
			Controls: []float64{0, 0, 9.81, 0, 0, 0}, Params: []float64{1.0},
		},
		"spin": {
			Model: "freebody", OdeSolver: "RK8", ControlType: "constant", Backend: "fd",
			FinalTime: 1.0, NShooting: 10, Steps: 2, NThreads: 2,
			InitState: []float64{0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 10},
			Controls:  []float64{0, 0, 0, 0, 0, 0}, Params: []float64{2.0},
		},
	},
	"decay": {
		"reference": {
			Model: "decay", OdeSolver: "RK4", ControlType: "constant", Backend: "dual",
			FinalTime: 1.0, NShooting: 1, Steps: 10, NThreads: 1,
			InitState: []float64{1}, Params: []float64{1},
		},
		"scaled": {
			Model: "decay", OdeSolver: "IRK", ControlType: "constant", Backend: "dual",
			FinalTime: 1.0, NShooting: 4, Degree: 3, NThreads: 2,
			InitState: []float64{1}, Params: []float64{0.5}, ParamScaling: []float64{2},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, name string) *Config {
	presets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets(model string) []string {
	presets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	return names
}
