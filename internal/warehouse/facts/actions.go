package facts

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/vuminh/adsboard-backend/internal/meta"
	"github.com/vuminh/adsboard-backend/pkg/db/models"
)

// Action types that feed the flat conversion counters. Anything else in the
// nested actions list is ignored rather than failing the row.
var (
	purchaseActionTypes = map[string]bool{
		"purchase":                   true,
		"omni_purchase":              true,
		"onsite_conversion.purchase": true,
	}
	messagingActionTypes = map[string]bool{
		"onsite_conversion.messaging_first_reply":             true,
		"onsite_conversion.messaging_conversation_started_7d": true,
	}
)

// MeasuresFromInsight flattens one raw insight row into the fact measure
// columns. Numeric fields arrive as strings; unparseable or absent values
// collapse to zero so a single odd field never drops the row.
func MeasuresFromInsight(row meta.InsightRow) models.Measures {
	m := models.Measures{
		Spend:       parseMoney(row.Spend),
		Impressions: parseCount(row.Impressions),
		Clicks:      parseCount(row.Clicks),
		CTR:         parseFloat(row.CTR),
		CPM:         parseMoney(row.CPM),
		Reach:       parseCount(row.Reach),
		Frequency:   parseFloat(row.Frequency),
	}

	for _, action := range row.Actions {
		n := parseCount(action.Value)
		switch {
		case purchaseActionTypes[action.ActionType]:
			m.Purchases += n
		case messagingActionTypes[action.ActionType]:
			m.MessagingStarted += n
		case action.ActionType == "link_click":
			m.LinkClicks += n
		case action.ActionType == "post_engagement":
			m.PostEngagement += n
		}
	}

	for _, value := range row.ActionValues {
		if purchaseActionTypes[value.ActionType] {
			m.PurchaseValue += parseMoney(value.Value)
		}
	}

	return m
}

// parseMoney goes through decimal so repeated accumulation of values like
// "120.45" does not pick up binary float drift on the way in.
func parseMoney(value string) float64 {
	if value == "" {
		return 0
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

func parseCount(value string) int64 {
	if value == "" {
		return 0
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(value string) float64 {
	if value == "" {
		return 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}
