// Package extract turns rendered Mercado Livre HTML into structured
// records. Listing pages go through goquery selectors with a card
// fallback; detail pages use regex extraction because their data often
// lives in inline JSON rather than stable markup.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ListItem is one result card from a search or listing page.
type ListItem struct {
	Title          string  `json:"title"`
	Price          float64 `json:"price"`
	PreviousPrice  float64 `json:"previous_price,omitempty"`
	Discount       string  `json:"discount,omitempty"`
	Brand          string  `json:"brand,omitempty"`
	Seller         string  `json:"seller,omitempty"`
	Rating         string  `json:"rating,omitempty"`
	ReviewsTotal   string  `json:"reviews_total,omitempty"`
	Shipping       string  `json:"shipping,omitempty"`
	Sponsored      bool    `json:"sponsored"`
	Link           string  `json:"link,omitempty"`
	IsTrackingLink bool    `json:"is_tracking_link"`
	Image          string  `json:"image,omitempty"`
	Stock          int     `json:"stock"`

	// Source stays empty for structured extraction; the orchestrator
	// sets it on recognition-derived candidate records.
	Source string `json:"source,omitempty"`
}

// Detail is a single product page record. Missing fields stay at
// their zero values.
type Detail struct {
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	PromoPrice float64 `json:"promo_price,omitempty"`
	Image      string  `json:"image,omitempty"`
	Seller     string  `json:"seller,omitempty"`
	Stock      int     `json:"stock"`
	URL        string  `json:"url"`
	Source     string  `json:"source,omitempty"`
}

// ParsePrice converts Brazilian price notation ("1.234,56") to a
// float. Returns 0 on anything unparseable.
func ParsePrice(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func joinPrice(fraction, cents string) float64 {
	fraction = strings.TrimSpace(fraction)
	cents = strings.TrimSpace(cents)
	if fraction == "" {
		return 0
	}
	if cents != "" && regexp.MustCompile(`\d`).MatchString(cents) {
		return ParsePrice(fraction + "," + cents)
	}
	return ParsePrice(fraction)
}

func firstText(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

// imageAttrs are probed in order; lazy-load attributes usually carry
// the real URL while src holds a base64 placeholder.
var imageAttrs = []string{"data-src", "data-original", "data-lazy", "data-zoom", "src"}

func cardImage(s *goquery.Selection) string {
	img := s.Find(".poly-card__portada img.poly-component__picture").First()
	if img.Length() == 0 {
		img = s.Find(".andes-carousel-snapped__slide img.poly-component__picture").First()
	}
	if img.Length() == 0 {
		return ""
	}
	for _, attr := range imageAttrs {
		if v, ok := img.Attr(attr); ok && v != "" && !strings.HasPrefix(v, "data:image/gif;base64,") {
			return v
		}
	}
	if v, ok := img.Attr("src"); ok {
		return v
	}
	return ""
}

func isTrackingLink(href string) bool {
	return strings.Contains(href, "click1.mercadolivre.com.br")
}

func parseCard(card *goquery.Selection) (ListItem, bool) {
	titleLink := card.Find("h3.poly-component__title-wrapper > a.poly-component__title").First()
	if titleLink.Length() == 0 {
		titleLink = card.Find("a.poly-component__title").First()
	}
	href, _ := titleLink.Attr("href")

	item := ListItem{
		Title:          strings.TrimSpace(titleLink.Text()),
		Brand:          firstText(card, ".poly-component__brand"),
		Seller:         firstText(card, ".poly-component__seller"),
		Rating:         firstText(card, ".poly-component__reviews .poly-reviews__rating"),
		ReviewsTotal:   firstText(card, ".poly-component__reviews .poly-reviews__total"),
		Discount:       firstText(card, ".andes-money-amount__discount"),
		Shipping:       firstText(card, ".poly-component__shipping"),
		Sponsored:      card.Find(".poly-component__ads-promotions").Length() > 0,
		Link:           href,
		IsTrackingLink: isTrackingLink(href),
		Image:          cardImage(card),
	}

	frac := firstText(card, ".poly-price__current .andes-money-amount__fraction")
	cents := firstText(card, ".poly-price__current .andes-money-amount__cents")
	if frac == "" {
		frac = firstText(card, ".andes-money-amount__fraction")
		cents = firstText(card, ".andes-money-amount__cents")
	}
	item.Price = joinPrice(frac, cents)
	item.PreviousPrice = joinPrice(
		firstText(card, ".andes-money-amount--previous .andes-money-amount__fraction"),
		firstText(card, ".andes-money-amount--previous .andes-money-amount__cents"),
	)

	ok := item.Title != "" || item.Price > 0 || item.Link != ""
	return item, ok
}

// ListItems parses a listing page. The li layout is tried first, then
// bare poly cards for layouts that drop the list wrapper.
func ListItems(html string) []ListItem {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var items []ListItem
	doc.Find("li.ui-search-layout__item").Each(func(_ int, li *goquery.Selection) {
		if item, ok := parseCard(li); ok {
			items = append(items, item)
		}
	})
	if len(items) > 0 {
		return items
	}

	doc.Find("div.poly-card__content").Each(func(_ int, card *goquery.Selection) {
		if item, ok := parseCard(card); ok {
			items = append(items, item)
		}
	})
	return items
}

var (
	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`<h1[^>]*class="[^"]*ui-pdp-title[^"]*"[^>]*>([^<]+)</h1>`),
		regexp.MustCompile(`<meta[^>]*property="og:title"[^>]*content="([^"]+)"`),
		regexp.MustCompile(`<title>([^<]+)</title>`),
	}

	promoPricePattern = regexp.MustCompile(`<span[^>]*class="[^"]*andes-money-amount[^"]*ui-pdp-price__part[^"]*"[^>]*>[\s\S]*?<span[^>]*class="[^"]*andes-money-amount__fraction[^"]*"[^>]*>([\d.,]+)</span>[\s\S]*?<span[^>]*class="[^"]*andes-money-amount__cents[^"]*"[^>]*>([\d.,]+)</span>`)
	originalPattern   = regexp.MustCompile(`<span[^>]*class="[^"]*andes-money-amount__fraction[^"]*"[^>]*data-testid="original-price"[^>]*>([\d.,]+)</span>`)

	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`<span data-testid="price-part"[\s\S]*?<span[^>]*class="[^"]*andes-money-amount__fraction[^"]*"[^>]*>([\d.]+)</span>[\s\S]*?<span[^>]*class="[^"]*andes-money-amount__cents[^"]*"[^>]*>([\d]+)</span>`),
		regexp.MustCompile(`"price":(\d+(?:\.\d+)?)`),
		regexp.MustCompile(`<span[^>]*class="[^"]*price-tag-fraction[^"]*"[^>]*>([\d.,]+)</span>`),
	}

	imagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`<img[^>]*data-zoom="([^"]+)"`),
		regexp.MustCompile(`<meta[^>]*property="og:image"[^>]*content="([^"]+)"`),
		regexp.MustCompile(`<img[^>]*class="[^"]*ui-pdp-image[^"]*"[^>]*src="([^"]+)"`),
	}

	sellerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"seller_name":"([^"]+)"`),
		regexp.MustCompile(`<h3[^>]*class="[^"]*store-header__title[^"]*"[^>]*>([^<]+)</h3>`),
		regexp.MustCompile(`<a[^>]*class="[^"]*store-info__name[^"]*"[^>]*>([^<]+)</a>`),
		regexp.MustCompile(`"seller":\s*\{\s*"@type":\s*"Organization",\s*"name":\s*"([^"]+)"`),
		regexp.MustCompile(`<span[^>]*class="[^"]*store-info__name[^"]*"[^>]*>([^<]+)</span>`),
		regexp.MustCompile(`<p[^>]*class="[^"]*official-store-info__title[^"]*"[^>]*>([^<]+)</p>`),
	}

	sellerURLPattern = regexp.MustCompile(`mercadolivre\.com\.br/loja/([^/?]+)`)

	availabilityPattern = regexp.MustCompile(`<span[^>]*class="[^"]*ui-pdp-buybox__quantity__available[^"]*"[^>]*>\(\+(\d+) dispon[ií]veis\)</span>`)
	quantityPattern     = regexp.MustCompile(`"available_quantity":(\d+)`)
)

func firstMatch(html string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(html); m != nil {
			v := strings.TrimSpace(m[1])
			if v != "" {
				return v
			}
		}
	}
	return ""
}

// Title returns the product title or empty when no pattern matches.
func Title(html string) string {
	return firstMatch(html, titlePatterns)
}

// Price extracts the current and promotional prices. When the
// promotional price equals the current price it is dropped, since a
// discount to the same value is just layout noise.
func Price(html string) (price, promo float64) {
	if m := promoPricePattern.FindStringSubmatch(html); m != nil {
		price = joinPrice(m[1], m[2])
	}
	if m := originalPattern.FindStringSubmatch(html); m != nil {
		promo = ParsePrice(m[1])
	}
	if price > 0 {
		if promo > 0 && promo-price < 0.01 && price-promo < 0.01 {
			promo = 0
		}
		return price, promo
	}

	// Fallbacks: the price-part spans, inline JSON (dot decimal, not
	// Brazilian notation), then the legacy price-tag markup.
	if m := pricePatterns[0].FindStringSubmatch(html); m != nil {
		price = joinPrice(m[1], m[2])
	}
	if price == 0 {
		if m := pricePatterns[1].FindStringSubmatch(html); m != nil {
			price, _ = strconv.ParseFloat(m[1], 64)
		}
	}
	if price == 0 {
		if m := pricePatterns[2].FindStringSubmatch(html); m != nil {
			price = ParsePrice(m[1])
		}
	}
	return price, 0
}

// Stock reads the available quantity, preferring the buybox span over
// the inline JSON. Absent both, stock is 0.
func Stock(html string) int {
	if m := availabilityPattern.FindStringSubmatch(html); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if m := quantityPattern.FindStringSubmatch(html); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

// Seller finds the seller name, falling back to the store slug in the
// URL when the page carries none.
func Seller(html, url string) string {
	if name := firstMatch(html, sellerPatterns); name != "" {
		return name
	}
	if m := sellerURLPattern.FindStringSubmatch(url); m != nil {
		words := strings.Split(strings.ReplaceAll(m[1], "-", " "), " ")
		for i, w := range words {
			if w != "" {
				words[i] = strings.ToUpper(w[:1]) + w[1:]
			}
		}
		return strings.Join(words, " ")
	}
	return ""
}

// ProductDetail assembles a full detail record from a product page.
func ProductDetail(html, url string) Detail {
	price, promo := Price(html)
	return Detail{
		Title:      Title(html),
		Price:      price,
		PromoPrice: promo,
		Image:      firstMatch(html, imagePatterns),
		Seller:     Seller(html, url),
		Stock:      Stock(html),
		URL:        url,
	}
}
