// Package analysis reduces a trajectory to per-frame descriptors.
//
// Every frame is superposed onto a fixed reference selection with the
// Kabsch algorithm, then reduced to:
//
//   - a sparse contact map over the selected atoms, stored as int16 row and
//     column indices with each unordered pair once (i < j)
//   - the RMSD to the reference after superposition, in Å
//
// Frames are processed one at a time; only the descriptors are kept.
//
//	res, err := analysis.Analyze(ctx, analysis.Request{
//	    Structure:  "sim.pdb",
//	    Trajectory: "sim.dcd",
//	    Reference:  "ref.pdb",
//	    Selection:  "protein and name CA",
//	    Cutoff:     8 * units.Angstrom,
//	})
package analysis
