package config

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	write := func(body string) string {
		path := filepath.Join(dir, "physloop.yaml")
		Expect(os.WriteFile(path, []byte(body), 0644)).To(Succeed())
		return path
	}

	Describe("DefaultConfig", func() {
		It("is already normalized", func() {
			cfg := DefaultConfig()
			Expect(cfg.Normalize()).To(BeZero())
			Expect(cfg.Physics.Multithreaded).To(BeFalse())
			Expect(cfg.Physics.FixedStep).To(BeNumerically(">", 0))
			Expect(cfg.Physics.MaxSubSteps).To(Equal(DefaultMaxSubSteps))
		})

		It("bounds the backlog by fixed step times sub-steps", func() {
			p := Physics{FixedStep: 0.02, MaxSubSteps: 2}
			Expect(p.MaxBacklog()).To(BeNumerically("~", 0.04, 1e-6))
		})
	})

	Describe("Load", func() {
		It("overrides defaults with file values", func() {
			path := write(`
physics:
  multithreaded: true
  fixed_step: 0.02
  max_sub_steps: 2
  join_timeout: 2s
  wait_timeout: 25ms
run:
  scenario: rain
  scenes: 3
`)
			cfg, err := Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Physics.Multithreaded).To(BeTrue())
			Expect(cfg.Physics.FixedStep).To(BeNumerically("~", 0.02, 1e-6))
			Expect(cfg.Physics.MaxSubSteps).To(Equal(2))
			Expect(cfg.Physics.JoinTimeout).To(Equal(2 * time.Second))
			Expect(cfg.Physics.WaitTimeout).To(Equal(25 * time.Millisecond))
			Expect(cfg.Run.Scenario).To(Equal("rain"))
			Expect(cfg.Run.Scenes).To(Equal(3))
			Expect(cfg.Run.Bodies).To(Equal(DefaultBodies))
		})

		It("defaults invalid settings to the safe baseline instead of failing", func() {
			path := write(`
physics:
  fixed_step: -1
  max_sub_steps: 0
  join_timeout: 0s
run:
  scenes: -2
  jitter: 3
`)
			cfg, err := Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Physics.FixedStep).To(Equal(DefaultFixedStep))
			Expect(cfg.Physics.MaxSubSteps).To(Equal(DefaultMaxSubSteps))
			Expect(cfg.Physics.JoinTimeout).To(Equal(DefaultJoinTimeout))
			Expect(cfg.Run.Scenes).To(Equal(DefaultScenes))
			Expect(cfg.Run.Jitter).To(BeZero())
		})

		It("keeps defaults for an empty file", func() {
			cfg, err := Load(write(""))
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Physics).To(Equal(DefaultPhysics()))
		})

		It("fails on a missing file", func() {
			_, err := Load(filepath.Join(dir, "missing.yaml"))
			Expect(err).To(HaveOccurred())
		})

		It("fails on malformed yaml", func() {
			_, err := Load(write("physics: [unterminated"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Save", func() {
		It("writes a file Load accepts", func() {
			cfg := DefaultConfig()
			cfg.Physics.MaxSubSteps = 7
			path := filepath.Join(dir, "out.yaml")
			Expect(Save(path, cfg)).To(Succeed())

			loaded, err := Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Physics.MaxSubSteps).To(Equal(7))
		})
	})

	Describe("Presets", func() {
		It("lists presets in sorted order", func() {
			names := ListPresets()
			Expect(names).To(ContainElements("lockstep", "realtime", "async", "mobile", "exclusive"))
			Expect(sort.StringsAreSorted(names)).To(BeTrue())
		})

		It("returns a normalized copy", func() {
			cfg := GetPreset("lockstep")
			Expect(cfg).NotTo(BeNil())
			Expect(cfg.Physics.FixedStep).To(BeNumerically("~", 0.02, 1e-6))
			Expect(cfg.Physics.MaxSubSteps).To(Equal(2))
			Expect(cfg.Physics.JoinTimeout).To(Equal(DefaultJoinTimeout))

			cfg.Physics.MaxSubSteps = 99
			Expect(Presets["lockstep"].Physics.MaxSubSteps).To(Equal(2))
		})

		It("returns nil for unknown presets", func() {
			Expect(GetPreset("nonexistent")).To(BeNil())
		})
	})
})
