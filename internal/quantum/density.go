// Package quantum implements the two-level open quantum system used by the
// coupled simulation: density matrices, a Lindblad dephasing step, Bures
// fidelity, and the quantum Fisher information of a phase rotation.
package quantum

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Density is a 2x2 qubit density matrix. Row-major: M[0][0] is <0|rho|0>.
// A valid Density is hermitian, unit trace, and positive semidefinite.
type Density struct {
	M [2][2]complex128
}

// PlusState returns the pure coherent state |+><+|, the usual starting point
// for dephasing experiments (maximal off-diagonal coherence).
func PlusState() Density {
	return Density{M: [2][2]complex128{
		{0.5, 0.5},
		{0.5, 0.5},
	}}
}

// MixedState returns a diagonal state with excited population p.
func MixedState(p float64) Density {
	p = clamp01(p)
	return Density{M: [2][2]complex128{
		{complex(1-p, 0), 0},
		{0, complex(p, 0)},
	}}
}

// FromBloch builds a density matrix from Bloch coordinates. Vectors outside
// the unit ball are scaled back onto it so the result stays physical.
func FromBloch(rx, ry, rz float64) Density {
	norm := math.Sqrt(rx*rx + ry*ry + rz*rz)
	if norm > 1 {
		rx, ry, rz = rx/norm, ry/norm, rz/norm
	}
	return Density{M: [2][2]complex128{
		{complex((1+rz)/2, 0), complex(rx/2, -ry/2)},
		{complex(rx/2, ry/2), complex((1-rz)/2, 0)},
	}}
}

// Bloch returns the Bloch vector (rx, ry, rz) of the state.
func (d Density) Bloch() (rx, ry, rz float64) {
	rx = 2 * real(d.M[1][0])
	ry = 2 * imag(d.M[1][0])
	rz = real(d.M[0][0]) - real(d.M[1][1])
	return rx, ry, rz
}

// Trace returns the real trace of the matrix.
func (d Density) Trace() float64 {
	return real(d.M[0][0]) + real(d.M[1][1])
}

// Det returns the determinant. For a valid density matrix this is real and
// lies in [0, 1/4]; zero for pure states.
func (d Density) Det() float64 {
	det := d.M[0][0]*d.M[1][1] - d.M[0][1]*d.M[1][0]
	return real(det)
}

// Purity returns tr(rho^2).
func (d Density) Purity() float64 {
	// For 2x2 hermitian with unit trace: tr(rho^2) = 1 - 2 det(rho).
	return 1 - 2*d.Det()
}

// Coherence returns the magnitude of the off-diagonal element, the quantity
// a dephasing channel destroys.
func (d Density) Coherence() float64 {
	return cmplx.Abs(d.M[0][1])
}

// Validate reports whether the matrix is a physical qubit state.
func (d Density) Validate() error {
	if math.Abs(d.Trace()-1) > 1e-9 {
		return fmt.Errorf("density trace %.12f, want 1", d.Trace())
	}
	if cmplx.Abs(d.M[0][1]-cmplx.Conj(d.M[1][0])) > 1e-9 {
		return fmt.Errorf("density not hermitian")
	}
	rx, ry, rz := d.Bloch()
	if n := math.Sqrt(rx*rx + ry*ry + rz*rz); n > 1+1e-9 {
		return fmt.Errorf("bloch norm %.12f exceeds 1", n)
	}
	return nil
}

// normalize restores hermiticity and unit trace after an Euler step.
func (d Density) normalize() Density {
	var out Density
	out.M[0][1] = (d.M[0][1] + cmplx.Conj(d.M[1][0])) / 2
	out.M[1][0] = cmplx.Conj(out.M[0][1])
	out.M[0][0] = complex(real(d.M[0][0]), 0)
	out.M[1][1] = complex(real(d.M[1][1]), 0)
	tr := out.Trace()
	if tr != 0 {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				out.M[i][j] /= complex(tr, 0)
			}
		}
	}
	return out
}

// BuresFidelity returns the Uhlmann fidelity between two qubit states using
// the closed form tr(ab) + 2*sqrt(det(a)det(b)). Self-fidelity is exactly 1.
func BuresFidelity(a, b Density) float64 {
	var trAB complex128
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			trAB += a.M[i][j] * b.M[j][i]
		}
	}
	detProd := a.Det() * b.Det()
	if detProd < 0 {
		detProd = 0
	}
	f := real(trAB) + 2*math.Sqrt(detProd)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// PhaseQFI returns the quantum Fisher information for estimating the angle of
// a rotation about the z axis: the squared transverse Bloch component.
func PhaseQFI(d Density) float64 {
	rx, ry, _ := d.Bloch()
	return rx*rx + ry*ry
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
