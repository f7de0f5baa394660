package detect

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Policy", func() {
	var policy Policy

	BeforeEach(func() {
		policy = DefaultPolicy()
	})

	Describe("Admit", func() {
		It("admits an allowed class above the confidence floor", func() {
			Expect(policy.Admit(Detection{Label: "can", Confidence: 0.9})).To(BeTrue())
		})

		It("admits exactly at the confidence floor", func() {
			Expect(policy.Admit(Detection{Label: "cup", Confidence: 0.3})).To(BeTrue())
		})

		It("rejects below the confidence floor", func() {
			Expect(policy.Admit(Detection{Label: "can", Confidence: 0.29})).To(BeFalse())
		})

		It("rejects labels outside the allowed classes", func() {
			Expect(policy.Admit(Detection{Label: "banana peel", Confidence: 0.95})).To(BeFalse())
		})

		It("matches model variants by substring", func() {
			Expect(policy.Admit(Detection{Label: "crushed aluminum can", Confidence: 0.8})).To(BeTrue())
			Expect(policy.Admit(Detection{Label: "empty water bottle", Confidence: 0.8})).To(BeTrue())
		})

		It("matches case-insensitively", func() {
			Expect(policy.Admit(Detection{Label: "Wine Bottle", Confidence: 0.8})).To(BeTrue())
		})
	})

	Describe("DefaultPolicy", func() {
		It("covers the stock recycling container classes", func() {
			Expect(policy.AllowedClasses).To(ConsistOf(
				"water bottle", "pop bottle", "wine bottle", "can", "cup",
			))
			Expect(policy.MinConfidence).To(Equal(0.3))
		})
	})
})
