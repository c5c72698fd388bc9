package cost

import (
	"fmt"

	"github.com/manash/azimg/pkg/models"
)

const (
	CurrencyUSD = "USD"

	// fallbackPrice is the medium square price, used for unknown combinations.
	fallbackPrice = 0.042
)

// Estimate is the expected charge for one submission.
type Estimate struct {
	PerImage float64
	Total    float64
	Currency string
}

func (e Estimate) String() string {
	return fmt.Sprintf("$%.3f (%s)", e.Total, e.Currency)
}

type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Estimate prices a submission by size, quality and image count. Edits are
// priced like generations; input image tokens are not counted.
func (c *Calculator) Estimate(params models.GenerationParameters) Estimate {
	perImage, ok := GetPrice(params.Size, params.Quality)
	if !ok {
		perImage = fallbackPrice
	}

	count := params.N
	if count < 0 {
		count = 0
	}

	return Estimate{
		PerImage: perImage,
		Total:    perImage * float64(count),
		Currency: CurrencyUSD,
	}
}
