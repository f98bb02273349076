package page

import (
	"strings"

	"github.com/polzovatel/seckill-agent/internal/snapshot"
)

// Markers are the substrings the classifier looks for. Location markers are
// matched case-insensitively against the URL, text markers against the sample.
type Markers struct {
	PaymentLocation     []string `mapstructure:"payment_location"`
	ReviewLocation      []string `mapstructure:"review_location"`
	TransactionLocation []string `mapstructure:"transaction_location"`
	SelectionLocation   []string `mapstructure:"selection_location"`
	PaymentText         []string `mapstructure:"payment_text"`
	SubmissionText      []string `mapstructure:"submission_text"`
	ErrorText           []string `mapstructure:"error_text"`
}

// DefaultMarkers match the Taobao cart -> order -> cashier flow.
func DefaultMarkers() Markers {
	return Markers{
		PaymentLocation:     []string{"cashier", "pay"},
		ReviewLocation:      []string{"buy", "order", "confirm", "checkout"},
		TransactionLocation: []string{"settle"},
		SelectionLocation:   []string{"cart"},
		PaymentText:         []string{"收银台", "支付宝", "cashier", "payment method"},
		SubmissionText:      []string{"提交订单", "确认订单", "place order", "submit order"},
		ErrorText:           []string{"页面出错", "网络异常", "系统繁忙", "something went wrong"},
	}
}

type rule struct {
	state   State
	markers []string
	text    bool
}

// Classifier maps a Signal to exactly one State. It holds no mutable state.
type Classifier struct {
	rules []rule
}

// NewClassifier fixes rule precedence. Location rules come first because the
// URL changes atomically on navigation while body text lags during re-render.
func NewClassifier(m Markers) *Classifier {
	return &Classifier{rules: []rule{
		{state: PaymentStage, markers: lower(m.PaymentLocation)},
		{state: ReviewStage, markers: lower(m.ReviewLocation)},
		{state: TransactionStage, markers: lower(m.TransactionLocation)},
		{state: SelectionStage, markers: lower(m.SelectionLocation)},
		{state: PaymentStage, markers: lower(m.PaymentText), text: true},
		{state: ReviewStage, markers: lower(m.SubmissionText), text: true},
		{state: ErrorStage, markers: lower(m.ErrorText), text: true},
	}}
}

// Classify returns the first matching rule's state, or Unknown.
func (c *Classifier) Classify(sig snapshot.Signal) State {
	loc := strings.ToLower(sig.Location)
	text := strings.ToLower(sig.Text)
	for _, r := range c.rules {
		subject := loc
		if r.text {
			subject = text
		}
		if subject != "" && containsAny(subject, r.markers) {
			return r.state
		}
	}
	return Unknown
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
