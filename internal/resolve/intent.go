// Package resolve ranks surface elements as candidates for an Intent.
package resolve

import "strings"

// Intent names what the current page requires.
type Intent int

const (
	NoIntent Intent = iota
	SelectAll
	AdvanceToReview
	SubmitOrder
)

var intentNames = [...]string{
	NoIntent:        "none",
	SelectAll:       "select_all",
	AdvanceToReview: "advance_to_review",
	SubmitOrder:     "submit_order",
}

func (i Intent) String() string {
	if i < 0 || int(i) >= len(intentNames) {
		return "none"
	}
	return intentNames[i]
}

// ParseIntent accepts the String form.
func ParseIntent(name string) (Intent, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range intentNames {
		if i != int(NoIntent) && n == name {
			return Intent(i), true
		}
	}
	return NoIntent, false
}

// Intents lists every actionable intent in flow order.
func Intents() []Intent { return []Intent{SelectAll, AdvanceToReview, SubmitOrder} }

// SizeProfile is the footprint range considered plausible for an intent's control.
type SizeProfile struct {
	MinWidth  float64 `mapstructure:"min_width"`
	MaxWidth  float64 `mapstructure:"max_width"`
	MinHeight float64 `mapstructure:"min_height"`
	MaxHeight float64 `mapstructure:"max_height"`
}

func (p SizeProfile) fits(w, h float64) bool {
	return w >= p.MinWidth && w <= p.MaxWidth && h >= p.MinHeight && h <= p.MaxHeight
}

// Table holds the lookup data for one intent.
type Table struct {
	// Markers are CSS selectors for the exact tier.
	Markers  []string `mapstructure:"markers"`
	Keywords []string `mapstructure:"keywords"`
	// Exclude vetoes any label containing one of these words.
	Exclude       []string    `mapstructure:"exclude"`
	MaxTextLength int         `mapstructure:"max_text_length"`
	Size          SizeProfile `mapstructure:"size"`
}

// Tables maps each intent to its lookup data.
type Tables map[Intent]Table

// DefaultTables target the Taobao cart and order pages.
func DefaultTables() Tables {
	button := SizeProfile{MinWidth: 60, MaxWidth: 300, MinHeight: 25, MaxHeight: 80}
	return Tables{
		SelectAll: {
			Markers: []string{
				`[data-spm*="selectall"]`,
				`input[type="checkbox"][name*="all"]`,
				`[aria-label*="全选"]`,
			},
			Keywords:      []string{"全选", "select all"},
			MaxTextLength: 20,
			Size:          SizeProfile{MinWidth: 10, MaxWidth: 200, MinHeight: 10, MaxHeight: 60},
		},
		AdvanceToReview: {
			Markers: []string{
				`button[data-spm*="settlement"]`,
				`button[data-spm*="checkout"]`,
				`a[data-spm*="settlement"]`,
				`a[data-spm*="checkout"]`,
				`div[data-spm*="settlement"][role="button"]`,
				`span[data-spm*="settlement"][role="button"]`,
			},
			Keywords:      []string{"结算", "去结算", "立即结算", "checkout", "settlement"},
			Exclude:       []string{"明细"},
			MaxTextLength: 50,
			Size:          button,
		},
		SubmitOrder: {
			Markers: []string{
				`button[data-spm*="submit"]`,
				`button[data-spm*="order"]`,
				`a[data-spm*="submit"]`,
				`a[data-spm*="order"]`,
			},
			Keywords:      []string{"提交订单", "立即支付", "确认支付", "submit order", "place order"},
			MaxTextLength: 50,
			Size:          button,
		},
	}
}
