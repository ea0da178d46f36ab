package core

import "testing"

func TestNonCosmeticSkipReason(t *testing.T) {
	tests := []struct {
		name    string
		brand   string
		product string
		want    string
	}{
		{"english gift card", "the ordinary", "Digital Gift Card", ReasonGiftCard},
		{"hyphenated gift card", "sephora", "Gift-Card 50 EUR", ReasonGiftCard},
		{"underscore gift card", "sephora", "holiday gift_card", ReasonGiftCard},
		{"egift", "ulta", "eGift Certificate", ReasonGiftCard},
		{"e-gift", "ulta", "E-Gift", ReasonGiftCard},
		{"german", "the ordinary", "Digitale Geschenkkarte", ReasonGiftCard},
		{"chinese", "丝芙兰", "礼品卡", ReasonGiftCard},
		{"regular product", "the ordinary", "Niacinamide 10% + Zinc 1%", ""},
		{"giftcard inside word stays", "acme", "Giftcardigan Balm", ""},
		{"empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NonCosmeticSkipReason(tt.brand, tt.product); got != tt.want {
				t.Errorf("NonCosmeticSkipReason(%q, %q) = %q, want %q", tt.brand, tt.product, got, tt.want)
			}
		})
	}
}
