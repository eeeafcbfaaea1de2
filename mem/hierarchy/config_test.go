package hierarchy

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/mem/cache"
)

var _ = Describe("Config", func() {
	var (
		cfg Config
	)

	BeforeEach(func() {
		cfg = DefaultConfig()
	})

	configErr := func(err error) *ConfigurationError {
		var cErr *ConfigurationError
		Expect(errors.As(err, &cErr)).To(BeTrue())

		return cErr
	}

	It("should accept the default configuration", func() {
		Expect(cfg.Validate()).To(Succeed())
	})

	It("should reject a hierarchy without levels", func() {
		cfg.Levels = nil

		cErr := configErr(cfg.Validate())
		Expect(cErr.Level).To(Equal(-1))
		Expect(cErr.Field).To(Equal("levels"))
	})

	It("should reject an associativity that is not a power of two", func() {
		cfg.Levels[1].Ways = 3

		cErr := configErr(cfg.Validate())
		Expect(cErr.Level).To(Equal(1))
		Expect(cErr.Field).To(Equal("ways"))
		Expect(cErr.Error()).To(ContainSubstring("level 1"))
	})

	It("should reject a size that cannot be split into ways", func() {
		cfg.Levels[0].Size = 6

		cErr := configErr(cfg.Validate())
		Expect(cErr.Level).To(Equal(0))
		Expect(cErr.Field).To(Equal("size"))
	})

	It("should reject a block size that is not a power of two", func() {
		cfg.BlockSize = 6

		Expect(configErr(cfg.Validate()).Field).To(Equal("block_size"))
	})

	It("should reject a zero latency", func() {
		cfg.Levels[0].Latency = 0

		Expect(configErr(cfg.Validate()).Field).To(Equal("latency"))
	})

	It("should reject a negative miss limit", func() {
		cfg.MaxOutstandingMisses = -1

		Expect(configErr(cfg.Validate()).Field).
			To(Equal("max_outstanding_misses"))
	})

	Context("loading", func() {
		write := func(content string) string {
			path := filepath.Join(GinkgoT().TempDir(), "hierarchy.yaml")
			Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

			return path
		}

		It("should load a file", func() {
			path := write(`
block_size: 4
policy: write-through
max_outstanding_misses: 0
levels:
  - {size: 8, ways: 2, latency: 1}
`)

			loaded, err := LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.BlockSize).To(Equal(4))
			Expect(loaded.Policy).To(Equal(cache.WriteThroughNoAllocate))
			Expect(loaded.MaxOutstandingMisses).To(Equal(0))
			Expect(loaded.MemoryLatency).To(Equal(100))
			Expect(loaded.Levels).To(Equal([]LevelConfig{
				{Size: 8, Ways: 2, Latency: 1},
			}))
		})

		It("should accept the numeric policy", func() {
			path := write(`
policy: 1
levels:
  - {size: 8, ways: 2, latency: 1}
`)

			loaded, err := LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Policy).To(Equal(cache.WriteThroughNoAllocate))
		})

		It("should reject unknown keys", func() {
			path := write(`
block_sise: 4
levels:
  - {size: 8, ways: 2, latency: 1}
`)

			_, err := LoadConfig(path)

			Expect(err).To(HaveOccurred())
		})

		It("should reject an unknown policy", func() {
			path := write(`
policy: write-around
levels:
  - {size: 8, ways: 2, latency: 1}
`)

			_, err := LoadConfig(path)

			Expect(err).To(MatchError(ContainSubstring("write-around")))
		})

		It("should validate the loaded file", func() {
			path := write(`
levels:
  - {size: 8, ways: 3, latency: 1}
`)

			_, err := LoadConfig(path)

			Expect(configErr(err).Field).To(Equal("ways"))
		})

		It("should report a missing file", func() {
			_, err := LoadConfig(filepath.Join(GinkgoT().TempDir(), "none.yaml"))

			Expect(err).To(MatchError(os.ErrNotExist))
		})
	})

	It("should not build a hierarchy from an invalid configuration", func() {
		cfg.Levels[0].Ways = 5

		h, err := MakeBuilder().WithConfig(cfg).BuildParallel("H")

		Expect(h).To(BeNil())
		Expect(configErr(err).Level).To(Equal(0))

		s, err := MakeBuilder().WithConfig(cfg).BuildSequential("H")

		Expect(s).To(BeNil())
		Expect(err).To(HaveOccurred())
	})
})
