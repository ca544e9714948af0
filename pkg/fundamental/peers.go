package fundamental

import (
	"sort"

	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

// Stat is an industry mean with the position of the stock among its peers
type Stat struct {
	Value        *float64 `json:"value"`
	IndustryMean *float64 `json:"industry_mean"`
	Percentile   *float64 `json:"percentile"`
}

// peerStat summarises one metric across peer rows. Missing values are
// ignored; the mean is rounded to two places and the percentile to one.
func peerStat(target *float64, values []*float64) Stat {
	var present []float64
	for _, v := range values {
		if v != nil {
			present = append(present, *v)
		}
	}
	s := Stat{Value: target}
	if len(present) == 0 {
		return s
	}
	s.IndustryMean = quotes.Float64(utils.Round(utils.Mean(present), 2))
	if target != nil {
		if p, ok := percentile(present, *target); ok {
			s.Percentile = quotes.Float64(p)
		}
	}
	return s
}

// percentile is the index of target in the ascending values over their
// count, in percent
func percentile(values []float64, target float64) (float64, bool) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	for i, v := range sorted {
		if v == target {
			return utils.Round(float64(i)/float64(len(sorted))*100, 1), true
		}
	}
	return 0, false
}

func code(symbol string) string {
	c, err := quotes.NormalizeSymbol(symbol)
	if err != nil {
		return symbol
	}
	return c
}
