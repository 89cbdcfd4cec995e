package quantum

// DephasingStep advances rho by one explicit Euler step of the Lindblad
// master equation with Hamiltonian H = (omega/2) sigma_z and a single
// dephasing channel L = sqrt(gamma) sigma_z:
//
//	drho/dt = -i[H, rho] + gamma (sigma_z rho sigma_z - rho)
//
// Both terms leave the diagonal untouched, so population is conserved by
// construction; the off-diagonal element rotates at omega and decays at
// rate 2*gamma. Hermiticity and unit trace are restored after the step to
// absorb Euler drift. Stable for 2*gamma*dt < 1.
func DephasingStep(rho Density, omega, gamma, dt float64) Density {
	if gamma < 0 {
		gamma = 0
	}
	c := rho.M[0][1]
	// d(rho01)/dt = (-i*omega - 2*gamma) * rho01
	dc := complex(-2*gamma*dt, -omega*dt) * c
	var out Density
	out.M[0][0] = rho.M[0][0]
	out.M[1][1] = rho.M[1][1]
	out.M[0][1] = c + dc
	out.M[1][0] = rho.M[1][0] + complex(real(dc), -imag(dc))
	return out.normalize()
}

// Evolve applies n dephasing steps and returns the trajectory endpoint.
func Evolve(rho Density, omega, gamma, dt float64, n int) Density {
	for i := 0; i < n; i++ {
		rho = DephasingStep(rho, omega, gamma, dt)
	}
	return rho
}
