package integrator

import (
	"fmt"
	"strings"
)

// Method selects the finite element scheme.
type Method int

const (
	RK4 Method = iota
	RK8
	IRK
)

var methodNames = map[Method]string{
	RK4: "RK4",
	RK8: "RK8",
	IRK: "IRK",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// Explicit reports whether m is an explicit Runge-Kutta scheme.
func (m Method) Explicit() bool {
	return m == RK4 || m == RK8
}

func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RK4", "":
		return RK4, nil
	case "RK8":
		return RK8, nil
	case "IRK", "COLLOCATION":
		return IRK, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// ListMethods returns every method name in declaration order.
func ListMethods() []string {
	return []string{RK4.String(), RK8.String(), IRK.String()}
}
