// Package engine defines the narrow contract between the simulation driver
// and a molecular-dynamics engine.
//
// The driver only needs to:
//
//   - build a [System] from a [Topology] (see the topology and forcefield packages)
//   - bind it to an integrator and a compute platform ([Engine.NewSimulation])
//   - set positions, minimize, assign velocities and step a [Simulation]
//   - observe progress through [Reporter] values
//
// Any backend satisfying [Engine] may be substituted. The langevin
// subpackage provides a pure Go reference engine.
//
// Units follow the usual MD conventions: nm, ps, amu, kJ/mol, K, elementary
// charge.
//
// # Thread Safety
//
// Simulation instances are NOT thread-safe.
package engine
