package prompt

import (
	"strings"

	"static-ads-backend/internal/imagegen"
	"static-ads-backend/internal/store"
)

// Every composed prompt begins with EnglishPrefix and ends with EnglishSuffix.
const (
	EnglishPrefix = "English text only. All words, headlines, and labels in English language."
	EnglishSuffix = `Text on image must be in English. Use English words like "Sale", "Shop Now", "Limited Offer", "Free Shipping", "Buy Now", "New Arrival", "Best Deal", "Save", "Discount". No French, no Spanish, no other languages.`
)

const (
	referenceLock = "Create an ad image that is nearly identical to the reference image. " +
		"Keep the EXACT same layout, design template, color scheme, typography style, composition, and visual structure."
	referenceVary     = "Only vary the text content — change the headline, discount numbers, promotional quotes, or call-to-action text to create a subtle variation."
	referenceVaryEdit = "Only vary the text content — change the headline, discount numbers, promotional quotes, or call-to-action text."
	referenceKeep     = "Do NOT change the background, graphic elements, shapes, or overall design."
	productIntoLayout = "Incorporate the product from the product image into the same layout and position as shown in the reference."
	productOnly       = "Professional advertisement featuring the exact product shown in the product image."
)

type Input struct {
	BasePrompt     string
	BrandKit       *store.BrandKit
	ReferenceImage string
	ProductImage   string
	Edit           bool
}

type Composed struct {
	Prompt string
	Base   *imagegen.BaseImage
}

// Compose layers the base prompt with brand constraints, image-structure
// instructions and the language wrapper, and picks the img2img base.
func Compose(in Input) Composed {
	body := ApplyBrand(strings.TrimSpace(in.BasePrompt), in.BrandKit)
	hasReference := strings.TrimSpace(in.ReferenceImage) != ""
	hasProduct := strings.TrimSpace(in.ProductImage) != ""

	parts := []string{EnglishPrefix}
	switch {
	case hasReference:
		parts = append(parts, referenceLock)
		if in.Edit {
			parts = append(parts, referenceVaryEdit)
		} else {
			parts = append(parts, referenceVary, referenceKeep)
		}
		parts = append(parts, body)
		if hasProduct {
			parts = append(parts, productIntoLayout)
		}
	case hasProduct:
		parts = append(parts, productOnly, body)
	default:
		parts = append(parts, body)
	}
	parts = append(parts, EnglishSuffix)

	return Composed{
		Prompt: join(parts),
		Base:   imagegen.SelectBase(in.ReferenceImage, in.ProductImage),
	}
}

// ApplyBrand appends the kit's identity as short declarative clauses. A nil
// kit leaves the prompt unchanged.
func ApplyBrand(prompt string, kit *store.BrandKit) string {
	if kit == nil {
		return prompt
	}

	parts := []string{prompt}
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			parts = append(parts, label+": "+value+".")
		}
	}
	add("Brand", kit.BrandName)
	add("Primary color", kit.PrimaryColor)
	add("Secondary color", kit.SecondaryColor)
	add("Accent color", kit.AccentColor)
	add("Typography", kit.FontPrimary)
	add("Brand tone", kit.BrandDescription)
	return join(parts)
}

// EditPrompt derives the stored prompt of an edit from its parent's prompt.
func EditPrompt(parentPrompt, instruction string) string {
	return strings.TrimSpace(parentPrompt) + " — Variation: " + strings.TrimSpace(instruction)
}

func join(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
