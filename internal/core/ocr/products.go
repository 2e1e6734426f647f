package ocr

import (
	"regexp"
	"strings"
)

// pricePatterns are applied in order; all matches across all patterns
// are collected before deduplication.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)R\$\s*([\d.,]+)`),
	regexp.MustCompile(`(?i)([\d.,]+)\s*reais?`),
	regexp.MustCompile(`(?i)Por\s+R\$\s*([\d.,]+)`),
	regexp.MustCompile(`(?i)([\d.,]+)\s*R\$`),
}

// productIndicators flag a text line as describing a product. The
// list covers the footwear vocabulary plus generic commerce terms so
// the parser survives other categories.
var productIndicators = []string{
	"tênis", "tenis", "sapato", "bota", "sandália", "chinelo",
	"nike", "adidas", "puma", "vans", "converse",
	"masculino", "feminino", "unissex",
	"tamanho", "tam", "número", "cor",
	"frete", "grátis", "entrega", "parcela",
}

var nonPriceChars = regexp.MustCompile(`[^\d.,]`)

// ExtractPrices pulls candidate prices from text. Only values with a
// decimal comma are kept; bare integers are too often installment
// counts or sizes.
func ExtractPrices(text string) []string {
	seen := make(map[string]struct{})
	var prices []string
	for _, re := range pricePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			price := nonPriceChars.ReplaceAllString(m[1], "")
			if price == "" || !strings.Contains(price, ",") {
				continue
			}
			if _, dup := seen[price]; dup {
				continue
			}
			seen[price] = struct{}{}
			prices = append(prices, price)
		}
	}
	return prices
}

// IdentifyProducts scans recognized text line by line. A line counts
// as a product when it carries a vocabulary indicator and at least one
// price.
func IdentifyProducts(text string) []Product {
	var products []Product
	for _, line := range strings.Split(text, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" {
			continue
		}

		indicated := false
		for _, ind := range productIndicators {
			if strings.Contains(line, ind) {
				indicated = true
				break
			}
		}
		if !indicated {
			continue
		}

		prices := ExtractPrices(line)
		if len(prices) == 0 {
			continue
		}

		title := line
		if runes := []rune(title); len(runes) > 100 {
			title = string(runes[:100])
		}
		products = append(products, Product{
			Title:        title,
			Price:        prices[0],
			RawText:      line,
			ExtractedVia: "ocr",
		})
	}
	return products
}

// AverageConfidence averages per-word confidences, ignoring the
// non-positive sentinel values the engine emits for whitespace.
func AverageConfidence(confidences []float64) float64 {
	var sum float64
	var n int
	for _, c := range confidences {
		if c > 0 {
			sum += c
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
