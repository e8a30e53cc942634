package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/san-kum/ocptrans/internal/ad"
	"github.com/san-kum/ocptrans/internal/integrator"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// ErrDimension indicates a configured vector that does not fit the model.
var ErrDimension = errors.New("config: dimension mismatch")

const (
	DefaultFinalTime = 1.0
	DefaultShooting  = 10
	DefaultSteps     = 5
	DefaultDegree    = 4
	DefaultThreads   = 1
)

// Config describes one phase to transcribe. Empty vectors fall back to the
// model defaults.
type Config struct {
	Model        string             `yaml:"model"`
	OdeSolver    string             `yaml:"ode_solver"`
	ControlType  string             `yaml:"control_type"`
	Backend      string             `yaml:"backend"`
	FinalTime    float64            `yaml:"final_time"`
	NShooting    int                `yaml:"n_shooting"`
	Steps        int                `yaml:"steps"`
	Degree       int                `yaml:"degree"`
	NThreads     int                `yaml:"n_threads"`
	InitState    []float64          `yaml:"init_state,omitempty"`
	Controls     []float64          `yaml:"control,omitempty"`
	Params       []float64          `yaml:"params,omitempty"`
	ParamScaling []float64          `yaml:"param_scaling,omitempty"`
	Constants    map[string]float64 `yaml:"constants,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:       "pendulum",
		OdeSolver:   "RK4",
		ControlType: "constant",
		Backend:     "dual",
		FinalTime:   DefaultFinalTime,
		NShooting:   DefaultShooting,
		Steps:       DefaultSteps,
		Degree:      DefaultDegree,
		NThreads:    DefaultThreads,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if _, err := c.Method(); err != nil {
		return err
	}
	if _, err := c.Control(); err != nil {
		return err
	}
	if _, err := c.SymbolicBackend(); err != nil {
		return err
	}
	if c.FinalTime <= 0 {
		return fmt.Errorf("final_time must be positive, got %f", c.FinalTime)
	}
	if c.NShooting < 1 {
		return fmt.Errorf("n_shooting must be >= 1, got %d", c.NShooting)
	}
	if c.NThreads < 1 {
		return fmt.Errorf("n_threads must be >= 1, got %d", c.NThreads)
	}
	if c.ParamScaling != nil && c.Params != nil && len(c.ParamScaling) != len(c.Params) {
		return fmt.Errorf("param_scaling has %d entries for %d params", len(c.ParamScaling), len(c.Params))
	}
	return nil
}

func (c *Config) Method() (integrator.Method, error) {
	return integrator.ParseMethod(c.OdeSolver)
}

func (c *Config) Control() (integrator.ControlType, error) {
	return integrator.ParseControlType(c.ControlType)
}

func (c *Config) SymbolicBackend() (ad.Backend, error) {
	return ad.ParseBackend(c.Backend)
}

// IntervalTime is the duration of one shooting interval.
func (c *Config) IntervalTime() float64 {
	return c.FinalTime / float64(c.NShooting)
}

// StateOr returns the configured initial state, or def when none is set.
func (c *Config) StateOr(def []float64) []float64 {
	if len(c.InitState) == 0 {
		return def
	}
	return c.InitState
}

// ParamsOr returns the configured parameters, or def when none are set.
func (c *Config) ParamsOr(def []float64) []float64 {
	if len(c.Params) == 0 {
		return def
	}
	return c.Params
}

// CheckControls rejects a configured control with more entries than the
// model's nu controls. Shorter controls are padded with zeros.
func (c *Config) CheckControls(nu int) error {
	if len(c.Controls) > nu {
		return fmt.Errorf("%w: control has %d entries, model takes %d", ErrDimension, len(c.Controls), nu)
	}
	return nil
}

// ControlGrid lays the configured control out over nodes columns of nu rows.
// Missing entries are zero. With ramp set the columns grow linearly from
// zero at the first node to the configured value at the last. The grid is
// nil when nu is zero.
func (c *Config) ControlGrid(nu, nodes int, ramp bool) (*mat.Dense, error) {
	if err := c.CheckControls(nu); err != nil {
		return nil, err
	}
	if nu == 0 || nodes == 0 {
		return nil, nil
	}
	u := make([]float64, nu)
	copy(u, c.Controls)

	grid := mat.NewDense(nu, nodes, nil)
	for k := 0; k < nodes; k++ {
		w := 1.0
		if ramp && nodes > 1 {
			w = float64(k) / float64(nodes-1)
		}
		for i, v := range u {
			grid.Set(i, k, w*v)
		}
	}
	return grid, nil
}
