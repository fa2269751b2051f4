// Package bracket holds the one bucketing function shared by the market
// price estimator and the deal score calculator. Transactions and listings
// must pass through the same Bucketer so their keys line up.
package bracket

import (
	"fmt"
	"math"

	"github.com/stwalsh4118/kakaku/internal/config"
)

// Bucketer partitions building age and floor area into fixed-width
// brackets. Each dimension has an open-ended top bracket starting at its Max.
type Bucketer struct {
	AgeWidth  int
	AgeMax    int
	AreaWidth int
	AreaMax   int
}

// New builds a Bucketer from the pipeline configuration.
func New(cfg config.PipelineConfig) Bucketer {
	return Bucketer{
		AgeWidth:  cfg.AgeBracketWidth,
		AgeMax:    cfg.AgeBracketMax,
		AreaWidth: cfg.AreaBracketWidth,
		AreaMax:   cfg.AreaBracketMax,
	}
}

// Key identifies a market price bracket.
type Key struct {
	Region string
	Age    string
	Area   string
}

// String renders the key for logs.
func (k Key) String() string {
	return k.Region + "/" + k.Age + "y/" + k.Area + "m2"
}

// Age returns the bracket label for a building built in buildingYear and
// priced in referenceYear. Negative ages clamp to zero.
func (b Bucketer) Age(referenceYear, buildingYear int) string {
	age := referenceYear - buildingYear
	if age < 0 {
		age = 0
	}
	return label(age, b.AgeWidth, b.AgeMax)
}

// Area returns the bracket label for a floor area in square meters.
// Non-positive or non-finite areas have no bracket.
func (b Bucketer) Area(area float64) (string, bool) {
	if area <= 0 || math.IsNaN(area) || math.IsInf(area, 0) {
		return "", false
	}
	return label(int(math.Floor(area)), b.AreaWidth, b.AreaMax), true
}

// KeyFor computes the full bracket key. It reports false when any input
// needed for bucketing is missing.
func (b Bucketer) KeyFor(region string, referenceYear int, buildingYear *int, area *float64) (Key, bool) {
	if region == "" || buildingYear == nil || area == nil {
		return Key{}, false
	}
	areaLabel, ok := b.Area(*area)
	if !ok {
		return Key{}, false
	}
	return Key{
		Region: region,
		Age:    b.Age(referenceYear, *buildingYear),
		Area:   areaLabel,
	}, true
}

func label(value, width, max int) string {
	if value >= max {
		return fmt.Sprintf("%d+", max)
	}
	lo := value / width * width
	hi := lo + width
	if hi > max {
		hi = max
	}
	return fmt.Sprintf("%d-%d", lo, hi)
}
