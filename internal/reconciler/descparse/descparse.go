// Package descparse recovers order ids from bank statement descriptions.
// Banks rewrite transfer memos aggressively: they may lowercase the text,
// strip the dash, and concatenate the memo with routing noise, so the parser
// matches the order id shape rather than splitting on delimiters.
package descparse

import (
	"regexp"
	"strings"
)

// An order id is ODR, an 8-digit date, and an 8-character uppercase
// hex-alphabet suffix. The dash between date and suffix is optional because
// several banks drop punctuation from memo lines.
var orderIDPattern = regexp.MustCompile(`ODR(\d{8})-?([A-Z0-9]{8})`)

// ExtractOrderID scans a statement description for an embedded order id and
// returns it in canonical dashed form. The first match wins.
func ExtractOrderID(description string) (string, bool) {
	normalized := strings.ToUpper(description)

	m := orderIDPattern.FindStringSubmatch(normalized)
	if m == nil {
		return "", false
	}
	return "ODR" + m[1] + "-" + m[2], true
}

// ExtractAllOrderIDs returns every distinct order id found, in order of
// appearance. Used to flag ambiguous memos that reference several orders.
func ExtractAllOrderIDs(description string) []string {
	normalized := strings.ToUpper(description)

	var ids []string
	seen := make(map[string]struct{})
	for _, m := range orderIDPattern.FindAllStringSubmatch(normalized, -1) {
		id := "ODR" + m[1] + "-" + m[2]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
