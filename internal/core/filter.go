package core

import (
	"regexp"
	"strings"
)

// ReasonGiftCard is the skip reason recorded for gift-card listings.
const ReasonGiftCard = "non_cosmetic_product_gift_card"

// skipRule pairs a pattern with the reason reported when it fires.
type skipRule struct {
	pattern *regexp.Regexp
	reason  string
}

// Retail exports mix gift cards and other non-cosmetic SKUs into product
// catalogs. Adding a rule is adding a row here.
var nonCosmeticRules = []skipRule{
	{regexp.MustCompile(`(?i)\bgift[\s_-]*card\b`), ReasonGiftCard},
	{regexp.MustCompile(`(?i)\be-?gift\b`), ReasonGiftCard},
	{regexp.MustCompile(`(?i)\bgeschenkkarte\b`), ReasonGiftCard},
	{regexp.MustCompile(`礼品卡`), ReasonGiftCard},
}

// NonCosmeticSkipReason reports why a product should not be harvested, or
// empty when it looks like a real cosmetic product.
func NonCosmeticSkipReason(brand, productName string) string {
	text := strings.TrimSpace(brand + " " + productName)
	if text == "" {
		return ""
	}
	for _, rule := range nonCosmeticRules {
		if rule.pattern.MatchString(text) {
			return rule.reason
		}
	}
	return ""
}
