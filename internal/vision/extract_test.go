package vision

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseIngredientList", func() {
	var (
		text        string
		ingredients []string
	)

	JustBeforeEach(func() {
		ingredients = ParseIngredientList(text)
	})

	When("the list has uneven whitespace and duplicates", func() {
		BeforeEach(func() {
			text = "Water, Sugar,  Salt ,Water"
		})

		It("should trim, keep order and keep duplicates", func() {
			Expect(ingredients).To(Equal([]string{"Water", "Sugar", "Salt", "Water"}))
		})
	})

	When("the list contains empty fragments", func() {
		BeforeEach(func() {
			text = "Water,, ,Sugar,"
		})

		It("should drop the empty fragments", func() {
			Expect(ingredients).To(Equal([]string{"Water", "Sugar"}))
		})
	})

	When("the text is empty", func() {
		BeforeEach(func() {
			text = ""
		})

		It("should return an empty list", func() {
			Expect(ingredients).To(BeEmpty())
		})
	})
})

var _ = Describe("ExtractIngredients", func() {
	var (
		gen         *mockGenerator
		ingredients []string
		err         error
	)

	BeforeEach(func() {
		gen = &mockGenerator{response: "Water, Sugar, Salt"}
	})

	JustBeforeEach(func() {
		ingredients, err = ExtractIngredients(context.Background(), gen, []byte("image-bytes"), "image/jpeg")
	})

	When("the model reads ingredients off the label", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the parsed ingredient names", func() {
			Expect(ingredients).To(Equal([]string{"Water", "Sugar", "Salt"}))
		})

		It("should attach the image to the call", func() {
			Expect(gen.images).To(HaveLen(1))
			Expect(gen.images[0]).NotTo(BeNil())
			Expect(gen.images[0].ContentType).To(Equal("image/jpeg"))
		})
	})

	When("the model call fails", func() {
		BeforeEach(func() {
			gen.err = errors.New("vision model down")
		})

		It("should propagate the error", func() {
			Expect(err).To(MatchError(ContainSubstring("vision model down")))
		})
	})

	When("the model returns no usable text", func() {
		BeforeEach(func() {
			gen.response = " , , "
		})

		It("should fail the extraction stage", func() {
			Expect(err).To(MatchError(ContainSubstring("no ingredients")))
		})
	})
})
