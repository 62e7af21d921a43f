package storefront

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	daysAgoRe    = regexp.MustCompile(`^(\d+)\s*(일 전|days? ago)$`)
	withinDayRe  = regexp.MustCompile(`^(\d+)\s*(시간 전|분 전|초 전|hours? ago|minutes? ago|seconds? ago)$`)
	dateLayouts  = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "2006.01.02", "2006. 1. 2.", "2006. 1. 2", "2006/01/02"}
	shortLayouts = []string{"01.02", "1. 2.", "01/02"}
)

// ParseReviewDate reads the absolute and relative date formats storefronts
// render. now must already be in the store's timezone. Unparseable input
// returns the zero time.
func ParseReviewDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch strings.ToLower(s) {
	case "오늘", "today", "방금 전", "just now":
		return today
	case "어제", "yesterday":
		return today.AddDate(0, 0, -1)
	case "그제", "그저께":
		return today.AddDate(0, 0, -2)
	}
	if m := daysAgoRe.FindStringSubmatch(strings.ToLower(s)); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, -n)
	}
	if withinDayRe.MatchString(strings.ToLower(s)) {
		return today
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t
		}
	}
	for _, layout := range shortLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
			if t.After(today) {
				t = t.AddDate(-1, 0, 0)
			}
			return t
		}
	}
	return time.Time{}
}
