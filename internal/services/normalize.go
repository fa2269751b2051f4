package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/stwalsh4118/kakaku/internal/models"
)

// Japanese era offsets: era year N is Gregorian year offset+N.
var eraOffsets = map[string]int{
	"令和": 2018,
	"平成": 1988,
	"昭和": 1925,
}

var (
	westernYearRe = regexp.MustCompile(`^(\d{4})年`)
	eraYearRe     = regexp.MustCompile(`^(令和|平成|昭和)(\d+|元)年`)
	periodRe      = regexp.MustCompile(`(\d{4})年第([1-4])四半期`)
)

// NormalizeAddress is the geocode cache key for an address: NFKC folded,
// trimmed, with internal whitespace runs collapsed to one space.
func NormalizeAddress(address string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(address)), " ")
}

// ParseBuildingYear reads a construction year such as 2005年 or 平成17年.
// It returns nil when the text names no recognizable year.
func ParseBuildingYear(s string) *int {
	s = strings.TrimSpace(norm.NFKC.String(s))
	if s == "" {
		return nil
	}
	if m := westernYearRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		return &year
	}
	if m := eraYearRe.FindStringSubmatch(s); m != nil {
		n := 1
		if m[2] != "元" {
			n, _ = strconv.Atoi(m[2])
		}
		year := eraOffsets[m[1]] + n
		return &year
	}
	return nil
}

// ParsePeriod reads a trade period such as 2024年第3四半期. Text that does not
// match falls back to the given year and quarter.
func ParsePeriod(s string, fallbackYear, fallbackQuarter int) (year, quarter int) {
	m := periodRe.FindStringSubmatch(norm.NFKC.String(s))
	if m == nil {
		return fallbackYear, fallbackQuarter
	}
	year, _ = strconv.Atoi(m[1])
	quarter, _ = strconv.Atoi(m[2])
	return year, quarter
}

func parsePositiveInt(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(norm.NFKC.String(s)), ",", "")
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func parsePositiveFloat(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(norm.NFKC.String(s)), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// NaturalKey identifies a real-world trade. Two payloads describing the same
// trade always hash to the same key.
func NaturalKey(rec models.TransactionRecord) string {
	buildingYear := ""
	if rec.BuildingYear != nil {
		buildingYear = strconv.Itoa(*rec.BuildingYear)
	}
	canonical := fmt.Sprintf("%s|%d|%d|%d|%.2f|%s",
		rec.Region, rec.TradeYear, rec.TradeQuarter, rec.TradePrice, rec.Area, buildingYear)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func optionalString(s string) *string {
	s = strings.TrimSpace(norm.NFKC.String(s))
	if s == "" {
		return nil
	}
	return &s
}
