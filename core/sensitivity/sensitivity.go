package sensitivity

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Function maps a temperature anomaly onto the nonlinearity of the discharge
// response. Implementations must be pure and finite for finite input.
type Function interface {
	Eval(x float64) float64
}

// Kind enumerates the built-in sensitivity strategies.
type Kind int

const (
	// SignedSquare returns sign(x)*x², keeping the sign of the anomaly.
	SignedSquare Kind = iota
	// Identity is the linear response.
	Identity
	// Exponential returns eˣ and is used by the legacy model.
	Exponential
)

// ErrUnknown is returned by Parse for names that match no built-in kind.
var ErrUnknown = errors.New("unknown sensitivity")

// Eval applies the strategy to x.
func (k Kind) Eval(x float64) float64 {
	switch k {
	case SignedSquare:
		return math.Copysign(x*x, x)
	case Identity:
		return x
	case Exponential:
		return math.Exp(x)
	default:
		panic(fmt.Sprintf("sensitivity: invalid kind %d", int(k)))
	}
}

func (k Kind) String() string {
	switch k {
	case SignedSquare:
		return "signed_square"
	case Identity:
		return "identity"
	case Exponential:
		return "exponential"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Parse resolves a configuration name to a Kind.
func Parse(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "signed_square", "square", "":
		return SignedSquare, nil
	case "identity", "linear":
		return Identity, nil
	case "exponential", "exp":
		return Exponential, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
}

// Custom adapts a plain function to the Function interface.
type Custom func(float64) float64

// Eval calls the wrapped function.
func (c Custom) Eval(x float64) float64 { return c(x) }

// Apply evaluates fn element-wise and returns a new slice.
func Apply(fn Function, xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = fn.Eval(x)
	}
	return out
}
