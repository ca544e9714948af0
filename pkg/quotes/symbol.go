package quotes

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// NormalizeSymbol reduces 600000, 600000.SH and sh600000 to the bare
// six-digit code
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, m := range []string{"SH", "SZ", "BJ"} {
		s = strings.TrimPrefix(s, m)
		s = strings.TrimSuffix(s, "."+m)
	}
	if len(s) != 6 {
		return "", errors.Errorf("invalid stock symbol %q", symbol)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", errors.Errorf("invalid stock symbol %q", symbol)
		}
	}
	return s, nil
}

// MarketID is the Eastmoney market of a stock code: 1 for Shanghai, 0 otherwise
func MarketID(code string) int {
	if strings.HasPrefix(code, "6") || strings.HasPrefix(code, "9") {
		return 1
	}
	return 0
}

func stockSecID(code string) string {
	return strconv.Itoa(MarketID(code)) + "." + code
}

// f10Code is the exchange-prefixed code used by the F10 pages, e.g. SH600000
func f10Code(code string) string {
	if MarketID(code) == 1 {
		return "SH" + code
	}
	return "SZ" + code
}

// indexSecID converts sh000001 into 1.000001
func indexSecID(symbol string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(symbol))
	switch {
	case strings.HasPrefix(s, "sh") && len(s) == 8:
		return "1." + s[2:], nil
	case strings.HasPrefix(s, "sz") && len(s) == 8:
		return "0." + s[2:], nil
	}
	return "", errors.Errorf("invalid index symbol %q (want sh000001 or sz399001)", symbol)
}

func indexSymbol(market int, code string) string {
	if market == 1 {
		return "sh" + code
	}
	return "sz" + code
}

// ParseNumber parses a numeric field. "-" and empty strings are missing;
// 万, 亿 and % suffixes are stripped without scaling.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, false
	}
	s = strings.NewReplacer("万", "", "亿", "", "%", "", ",", "").Replace(s)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// row is one decoded JSON object from an Eastmoney table
type row map[string]any

func (r row) str(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return ""
	}
}

func (r row) num(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case string:
		return ParseNumber(v)
	default:
		return 0, false
	}
}

// f returns the value of key or zero when missing
func (r row) f(key string) float64 {
	v, _ := r.num(key)
	return v
}

func (r row) ptr(key string) *float64 {
	if v, ok := r.num(key); ok {
		return &v
	}
	return nil
}

func (r row) int(key string) int {
	v, _ := r.num(key)
	return int(v)
}
