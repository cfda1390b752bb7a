package imagegen

import "strings"

const (
	ReferenceStrength = 0.35
	ProductStrength   = 0.55

	MaxImages = 10
)

// BaseImage is the img2img starting point. Lower strength keeps the output
// closer to the base.
type BaseImage struct {
	URL      string
	Strength float64
}

type Request struct {
	Prompt string
	Width  int
	Height int
	Count  int
	Base   *BaseImage
	Seed   *int64
}

// SelectBase picks the img2img base: the reference image when present, else
// the product image, else none.
func SelectBase(referenceURL, productURL string) *BaseImage {
	referenceURL = strings.TrimSpace(referenceURL)
	productURL = strings.TrimSpace(productURL)

	switch {
	case referenceURL != "":
		return &BaseImage{URL: referenceURL, Strength: ReferenceStrength}
	case productURL != "":
		return &BaseImage{URL: productURL, Strength: ProductStrength}
	}
	return nil
}

// ClampCount bounds an image count to 1..MaxImages.
func ClampCount(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxImages {
		return MaxImages
	}
	return n
}
