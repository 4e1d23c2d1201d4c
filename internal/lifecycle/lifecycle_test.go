package lifecycle_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mdrun/internal/config"
	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/engine/langevin"
	"github.com/san-kum/mdrun/internal/fixture"
	"github.com/san-kum/mdrun/internal/lifecycle"
	"github.com/san-kum/mdrun/internal/structure"
	"github.com/san-kum/mdrun/internal/trajectory"
	"github.com/san-kum/mdrun/internal/units"
)

const natoms = 10

// writeRunDir lays out a finished run: helix.pdb, helix.top and a DCD
// whose frame f is the helix shifted by 0.1 f nm along x.
func writeRunDir(dir string, frames int) {
	files, err := fixture.Write(dir, "helix", natoms, nil)
	Expect(err).NotTo(HaveOccurred())
	Expect(files.Topology).To(BeAnExistingFile())

	w, err := trajectory.CreateDCD(filepath.Join(dir, "sim.dcd"), natoms, 1, 2*units.Femtosecond, false)
	Expect(err).NotTo(HaveOccurred())
	for f := 0; f < frames; f++ {
		pos := fixture.Helix(natoms)
		for i := range pos {
			pos[i][0] += 0.1 * float64(f)
		}
		Expect(w.WriteFrame(pos, nil)).To(Succeed())
	}
	Expect(w.Close()).To(Succeed())
}

var _ = Describe("Manager", func() {
	var (
		ctx      context.Context
		settings *config.Settings
		manager  *lifecycle.Manager
		inputs   fixture.Files
		workDir  string
	)

	BeforeEach(func() {
		ctx = context.Background()
		settings = config.GetPreset("smoke")
		settings.SetVelocities = false

		var err error
		inputs, err = fixture.Write(GinkgoT().TempDir(), "helix", natoms, nil)
		Expect(err).NotTo(HaveOccurred())
		workDir = GinkgoT().TempDir()
		manager = lifecycle.New(settings, langevin.New(nil))
	})

	AfterEach(func() {
		Expect(manager.Close()).To(Succeed())
	})

	It("rejects a nil start condition", func() {
		Expect(manager.Initialize(ctx, workDir, nil)).To(MatchError(lifecycle.ErrNilStartCondition))
	})

	Context("with an empty slot", func() {
		It("fails Continue", func() {
			err := manager.Initialize(ctx, workDir, lifecycle.Continue{})
			Expect(err).To(MatchError(lifecycle.ErrNoCachedSimulation))
			Expect(manager.Simulation()).To(BeNil())
		})
	})

	Context("FromStructure", func() {
		BeforeEach(func() {
			start := lifecycle.FromStructure{StructureFile: inputs.Structure, TopologyFile: inputs.Topology}
			Expect(manager.Initialize(ctx, workDir, start)).To(Succeed())
		})

		It("copies the inputs into the working directory", func() {
			Expect(manager.StructureFile()).To(Equal(filepath.Join(workDir, "helix.pdb")))
			Expect(manager.TopologyFile()).To(Equal(filepath.Join(workDir, "helix.top")))
			Expect(manager.StructureFile()).To(BeAnExistingFile())
			Expect(manager.TopologyFile()).To(BeAnExistingFile())
		})

		It("caches a simulation at the structure's positions", func() {
			sim := manager.Simulation()
			Expect(sim).NotTo(BeNil())
			Expect(sim.State().Positions).To(HaveLen(natoms))
		})

		It("keeps the simulation and files on Continue", func() {
			sim := manager.Simulation()
			pdb := manager.StructureFile()
			Expect(manager.Initialize(ctx, GinkgoT().TempDir(), lifecycle.Continue{})).To(Succeed())
			Expect(manager.Simulation()).To(BeIdenticalTo(sim))
			Expect(manager.StructureFile()).To(Equal(pdb))
		})

		It("replaces and releases the old simulation on a second FromStructure", func() {
			old := manager.Simulation()
			Expect(manager.Initialize(ctx, GinkgoT().TempDir(), lifecycle.FromStructure{StructureFile: inputs.Structure})).To(Succeed())
			Expect(manager.Simulation()).NotTo(BeIdenticalTo(old))
			Expect(manager.TopologyFile()).To(BeEmpty())
			Expect(old.SetPositions(fixture.Helix(natoms))).To(MatchError(engine.ErrClosed))
		})

		It("leaves the slot unchanged when the rebuild fails", func() {
			old := manager.Simulation()
			pdb, top := manager.StructureFile(), manager.TopologyFile()

			settings.Solvent = config.SolventExplicit
			err := manager.Initialize(ctx, GinkgoT().TempDir(), lifecycle.FromStructure{StructureFile: inputs.Structure})
			Expect(err).To(HaveOccurred())

			Expect(manager.Simulation()).To(BeIdenticalTo(old))
			Expect(manager.StructureFile()).To(Equal(pdb))
			Expect(manager.TopologyFile()).To(Equal(top))
			Expect(old.SetPositions(fixture.Helix(natoms))).To(Succeed())
		})
	})

	Context("FromRestart", func() {
		var runDir string

		BeforeEach(func() {
			runDir = filepath.Join(GinkgoT().TempDir(), "run-0001")
			Expect(os.Mkdir(runDir, 0755)).To(Succeed())
			writeRunDir(runDir, 10)
		})

		It("extracts the frame into a named structure file and builds from it", func() {
			Expect(manager.Initialize(ctx, workDir, lifecycle.FromRestart{RunDir: runDir, Frame: 3})).To(Succeed())

			want := filepath.Join(workDir, "run-0001_frame000003.pdb")
			Expect(manager.StructureFile()).To(Equal(want))
			Expect(manager.TopologyFile()).To(Equal(filepath.Join(workDir, "helix.top")))
			Expect(manager.TopologyFile()).To(BeAnExistingFile())

			st, err := structure.ReadFile(want)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Positions()[0][0]).To(BeNumerically("~", fixture.Helix(natoms)[0][0]+0.3, 1e-3))

			got := manager.Simulation().State().Positions
			Expect(got[0][0]).To(BeNumerically("~", st.Positions()[0][0], 1e-9))
		})

		It("fails on a frame past the end and keeps the previous simulation", func() {
			Expect(manager.Initialize(ctx, workDir, lifecycle.FromRestart{RunDir: runDir, Frame: 0})).To(Succeed())
			old := manager.Simulation()

			err := manager.Initialize(ctx, workDir, lifecycle.FromRestart{RunDir: runDir, Frame: 10})
			Expect(err).To(MatchError(trajectory.ErrFrameOutOfRange))
			Expect(manager.Simulation()).To(BeIdenticalTo(old))
		})

		It("fails when the trajectory is missing", func() {
			Expect(os.Remove(filepath.Join(runDir, "sim.dcd"))).To(Succeed())
			err := manager.Initialize(ctx, workDir, lifecycle.FromRestart{RunDir: runDir, Frame: 0})
			Expect(err).To(MatchError(lifecycle.ErrRestartFiles))
			Expect(manager.Simulation()).To(BeNil())
		})

		It("prefers a .top file over a .prmtop file", func() {
			bogus := filepath.Join(runDir, "helix.prmtop")
			Expect(os.WriteFile(bogus, []byte("not a prmtop\n"), 0644)).To(Succeed())

			Expect(manager.Initialize(ctx, workDir, lifecycle.FromRestart{RunDir: runDir, Frame: 1})).To(Succeed())
			Expect(manager.TopologyFile()).To(Equal(filepath.Join(workDir, "helix.top")))
			Expect(filepath.Join(workDir, "helix.prmtop")).NotTo(BeAnExistingFile())
		})

		It("falls back to a .prmtop file when no .top is present", func() {
			Expect(os.Rename(filepath.Join(runDir, "helix.top"), filepath.Join(runDir, "helix.prmtop"))).To(Succeed())

			err := manager.Initialize(ctx, workDir, lifecycle.FromRestart{RunDir: runDir, Frame: 1})
			Expect(err).To(HaveOccurred())
			Expect(filepath.Join(workDir, "helix.prmtop")).To(BeAnExistingFile())
			Expect(manager.Simulation()).To(BeNil())
		})

		It("builds without a topology when none is present", func() {
			Expect(os.Remove(filepath.Join(runDir, "helix.top"))).To(Succeed())
			Expect(manager.Initialize(ctx, workDir, lifecycle.FromRestart{RunDir: runDir, Frame: 1})).To(Succeed())
			Expect(manager.TopologyFile()).To(BeEmpty())
		})
	})
})

var _ = Describe("FrameFile", func() {
	It("zero-pads the frame to six digits", func() {
		Expect(lifecycle.FrameFile("/data/runs/abc/", 42)).To(Equal("abc_frame000042.pdb"))
	})
})
