package config

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Load", func() {
	setEnv := func(key, value string) {
		prev, had := os.LookupEnv(key)
		Expect(os.Setenv(key, value)).To(Succeed())
		DeferCleanup(func() {
			if had {
				_ = os.Setenv(key, prev)
			} else {
				_ = os.Unsetenv(key)
			}
		})
	}

	BeforeEach(func() {
		setEnv("EDITORIAL_ENV", "test")
	})

	It("applies engine defaults", func() {
		cfg, err := Load(ServiceTypeServer)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Engine.RecentTurns).To(Equal(3))
		Expect(cfg.Engine.IntensityStep).To(Equal(1))
		Expect(cfg.Engine.ReviseMinWords).To(BeZero())
		Expect(cfg.Engine.ReviseMinChapters).To(BeZero())
		Expect(cfg.Engine.LLMTimeout).To(Equal(90 * time.Second))
	})

	It("reads overrides from the environment", func() {
		setEnv("MEMORY_RECENT_TURNS", "5")
		setEnv("INTENSITY_STEP", "2")
		setEnv("EDITOR_PERSONA", "sage")
		setEnv("THREAD_LOCK_TTL", "30s")

		cfg, err := Load(ServiceTypeServer)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Engine.RecentTurns).To(Equal(5))
		Expect(cfg.Engine.IntensityStep).To(Equal(2))
		Expect(cfg.Engine.DefaultPersona).To(Equal("sage"))
		Expect(cfg.Engine.ThreadLockTTL).To(Equal(30 * time.Second))
	})

	It("ignores unparsable numbers", func() {
		setEnv("MEMORY_RECENT_TURNS", "lots")
		cfg, err := Load(ServiceTypeServer)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Engine.RecentTurns).To(Equal(3))
	})

	It("rejects an out of range intensity step", func() {
		setEnv("INTENSITY_STEP", "11")
		_, err := Load(ServiceTypeServer)
		Expect(err).To(MatchError(ContainSubstring("INTENSITY_STEP")))
	})

	It("requires an editor LLM key for the worker", func() {
		setEnv("EDITOR_LLM_API_KEY", "")
		_, err := Load(ServiceTypeWorker)
		Expect(err).To(MatchError(ContainSubstring("EDITOR_LLM_API_KEY")))
	})

	It("requires the summarizer and gitlab for the worker", func() {
		setEnv("EDITOR_LLM_API_KEY", "k")
		setEnv("SUMMARIZER_LLM_API_KEY", "")
		_, err := Load(ServiceTypeWorker)
		Expect(err).To(MatchError(ContainSubstring("SUMMARIZER_LLM_API_KEY")))

		setEnv("SUMMARIZER_LLM_API_KEY", "k")
		setEnv("GITLAB_TOKEN", "")
		_, err = Load(ServiceTypeWorker)
		Expect(err).To(MatchError(ContainSubstring("GITLAB_TOKEN")))
	})
})

var _ = Describe("LLMConfig", func() {
	DescribeTable("Enabled",
		func(c LLMConfig, expected bool) {
			Expect(c.Enabled()).To(Equal(expected))
		},
		Entry("anthropic with key", LLMConfig{Provider: "anthropic", APIKey: "k"}, true),
		Entry("openai with key", LLMConfig{Provider: "openai", APIKey: "k"}, true),
		Entry("missing key", LLMConfig{Provider: "openai"}, false),
		Entry("unknown provider", LLMConfig{Provider: "bedrock", APIKey: "k"}, false),
	)
})
