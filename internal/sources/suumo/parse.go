package suumo

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/stwalsh4118/kakaku/internal/models"
)

const siteRoot = "https://suumo.jp"

var (
	priceRe        = regexp.MustCompile(`(?:(\d+)億)?(?:(\d+)万)?円`)
	addressRe      = regexp.MustCompile(`(東京都\S+区\S*|千葉県\S+市\S*)`)
	areaRe         = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:m2|m²|㎡|m)`)
	floorPlanRe    = regexp.MustCompile(`\d+[SLDK]+`)
	walkRe         = regexp.MustCompile(`徒歩(\d+)分`)
	stationWalkRe  = regexp.MustCompile(`[「『]([^」』]{1,15})[」』]\s*徒歩\d+分`)
	stationSuffRe  = regexp.MustCompile(`[「『]([^」』]{1,10})[」』]駅`)
	builtLabelRe   = regexp.MustCompile(`築年月\s*[:：]?\s*(\d{4})年`)
	builtSuffixRe  = regexp.MustCompile(`(\d{4})年\d*月?築`)
	floorOfTotalRe = regexp.MustCompile(`(\d+)階\s*[/／]\s*(\d+)階建`)
	totalThenRe    = regexp.MustCompile(`(\d+)階建[のて\s　]*(\d+)階`)
	floorLabelRe   = regexp.MustCompile(`所在階\s*[:：]?\s*(\d+)階`)
	floorPartRe    = regexp.MustCompile(`(\d+)階部分`)
	ncPathRe       = regexp.MustCompile(`nc_(\d+)`)
	ncQueryRe      = regexp.MustCompile(`nc=(\d+)`)
	digitRe        = regexp.MustCompile(`\d`)
	asciiOnlyRe    = regexp.MustCompile(`^[A-Za-z0-9\s]+$`)
)

// Card areas outside this range are station distances or lot sizes.
const (
	minCardArea = 30
	maxCardArea = 200
)

var stationNoise = []string{
	"グループ", "会社", "物件", "価格", "万円", "特典", "対象", "販売", "所在地",
	"資料請求", "お気に入り", "追加", "リノベ", "リフォーム", "角住戸", "最上階",
	"完工", "㎡", "LDK", "DK", "階建", "築年", "沿線", "眺望", "ペット", "角部屋",
	"向き", "ガーデン", "シリーズ",
}

// Page is one parsed search result page.
type Page struct {
	Listings   []models.RawListing
	Cards      int
	Malformed  int
	TotalPages int
}

// ParsePage reads a search result page. regions are the names a card address
// may resolve to; fallback is used when the address names none of them.
func ParsePage(r io.Reader, fallback string, regions []string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, err
	}

	cards := doc.Find(".property_unit")
	if cards.Length() == 0 {
		cards = doc.Find(".cassetteitem")
	}

	page := Page{Cards: cards.Length(), TotalPages: totalPages(doc)}
	cards.Each(func(_ int, card *goquery.Selection) {
		listing, ok := ParseCard(card, fallback, regions)
		if !ok {
			page.Malformed++
			return
		}
		page.Listings = append(page.Listings, listing)
	})
	return page, nil
}

// ParseCard extracts one listing from a property card. It fails only when the
// card carries no link to identify it by.
func ParseCard(card *goquery.Selection, fallback string, regions []string) (models.RawListing, bool) {
	link := card.Find("a[href*='/ms/chuko/']").First()
	if link.Length() == 0 {
		link = card.Find("a").First()
	}
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return models.RawListing{}, false
	}

	sourceURL := absoluteURL(href)
	text := cardText(card)

	listing := models.RawListing{
		SourceID:     SourceID(sourceURL),
		PropertyName: strings.TrimSpace(link.Text()),
		SourceURL:    sourceURL,
		Region:       fallback,
		AskingPrice:  ParsePrice(text),
		Area:         parseArea(text),
		BuildingYear: parseBuildingYear(text),
		FloorPlan:    floorPlanRe.FindString(text),
	}

	if addr := addressRe.FindString(text); addr != "" {
		listing.Address = addr
		listing.Region = RegionFromAddress(addr, regions, fallback)
	}

	listing.StationName, listing.MinutesToStation = parseStation(text)
	listing.Floor, listing.TotalFloors = parseFloors(text)
	return listing, true
}

// SourceID derives the stable listing identifier from its detail URL.
func SourceID(sourceURL string) string {
	if m := ncPathRe.FindStringSubmatch(sourceURL); m != nil {
		return "suumo_" + m[1]
	}
	if m := ncQueryRe.FindStringSubmatch(sourceURL); m != nil {
		return "suumo_" + m[1]
	}
	sum := md5.Sum([]byte(sourceURL))
	return "suumo_" + hex.EncodeToString(sum[:])[:12]
}

// RegionFromAddress returns the first region named in address, or fallback.
func RegionFromAddress(address string, regions []string, fallback string) string {
	for _, name := range regions {
		if strings.Contains(address, name) {
			return name
		}
	}
	return fallback
}

// ParsePrice reads the first yen amount such as 9500万円 or 1億2000万円.
func ParsePrice(text string) *int64 {
	text = strings.ReplaceAll(text, ",", "")
	for _, m := range priceRe.FindAllStringSubmatch(text, -1) {
		var total int64
		if m[1] != "" {
			oku, _ := strconv.ParseInt(m[1], 10, 64)
			total += oku * 100_000_000
		}
		if m[2] != "" {
			man, _ := strconv.ParseInt(m[2], 10, 64)
			total += man * 10_000
		}
		if total > 0 {
			return &total
		}
	}
	return nil
}

func parseArea(text string) *float64 {
	for _, m := range areaRe.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if v >= minCardArea && v <= maxCardArea {
			return &v
		}
	}
	return nil
}

func parseBuildingYear(text string) *int {
	for _, re := range []*regexp.Regexp{builtLabelRe, builtSuffixRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			return atoi(m[1])
		}
	}
	return nil
}

func parseStation(text string) (string, *int) {
	var minutes *int
	if m := walkRe.FindStringSubmatch(text); m != nil {
		minutes = atoi(m[1])
	}

	name := ""
	if m := stationWalkRe.FindStringSubmatch(text); m != nil {
		name = m[1]
	} else if m := stationSuffRe.FindStringSubmatch(text); m != nil {
		name = m[1]
	}
	return validStationName(name), minutes
}

// validStationName drops bracketed marketing text that the station patterns
// pick up by accident.
func validStationName(name string) string {
	if name == "" || len([]rune(name)) > 12 {
		return ""
	}
	for _, noise := range stationNoise {
		if strings.Contains(name, noise) {
			return ""
		}
	}
	if asciiOnlyRe.MatchString(name) && len(name) > 5 {
		return ""
	}
	if len(digitRe.FindAllString(name, -1)) > 2 {
		return ""
	}
	return name
}

func parseFloors(text string) (floor, total *int) {
	if m := floorOfTotalRe.FindStringSubmatch(text); m != nil {
		return atoi(m[1]), atoi(m[2])
	}
	if m := totalThenRe.FindStringSubmatch(text); m != nil {
		return atoi(m[2]), atoi(m[1])
	}
	if m := floorLabelRe.FindStringSubmatch(text); m != nil {
		return atoi(m[1]), nil
	}
	if m := floorPartRe.FindStringSubmatch(text); m != nil {
		return atoi(m[1]), nil
	}
	return nil, nil
}

func totalPages(doc *goquery.Document) int {
	maxPage := 1
	doc.Find(".pagination_set a, .pagination a, [class*='pager'] a").Each(func(_ int, a *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(a.Text())); err == nil && n > maxPage {
			maxPage = n
		}
	})
	return maxPage
}

// cardText joins the card's text nodes with spaces in document order.
func cardText(card *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				if t := strings.TrimSpace(c.Text()); t != "" {
					parts = append(parts, t)
				}
			case "script", "style":
			default:
				walk(c)
			}
		})
	}
	walk(card)
	return strings.Join(parts, " ")
}

func absoluteURL(href string) string {
	href = strings.TrimSpace(href)
	u, err := url.Parse(href)
	if err != nil || u.IsAbs() {
		return href
	}
	root, _ := url.Parse(siteRoot)
	return root.ResolveReference(u).String()
}

func atoi(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
