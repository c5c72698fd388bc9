package cost

import "github.com/manash/azimg/pkg/models"

// gpt-image-1 pricing (USD per image)
// Source: https://azure.microsoft.com/pricing/details/cognitive-services/openai-service/

type PricingKey struct {
	Size    models.Size
	Quality models.Quality
}

var imagePricing = map[PricingKey]float64{
	{Size: models.SizeSquare, Quality: models.QualityLow}:    0.011,
	{Size: models.SizeSquare, Quality: models.QualityMedium}: 0.042,
	{Size: models.SizeSquare, Quality: models.QualityHigh}:   0.167,

	{Size: models.SizeLandscape, Quality: models.QualityLow}:    0.016,
	{Size: models.SizeLandscape, Quality: models.QualityMedium}: 0.063,
	{Size: models.SizeLandscape, Quality: models.QualityHigh}:   0.250,

	{Size: models.SizePortrait, Quality: models.QualityLow}:    0.016,
	{Size: models.SizePortrait, Quality: models.QualityMedium}: 0.063,
	{Size: models.SizePortrait, Quality: models.QualityHigh}:   0.250,
}

func GetPrice(size models.Size, quality models.Quality) (float64, bool) {
	price, ok := imagePricing[PricingKey{Size: size, Quality: quality}]
	return price, ok
}
