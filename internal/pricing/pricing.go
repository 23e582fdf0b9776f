// Package pricing computes cart line prices from a base price and the
// price deltas encoded in modifier option labels, e.g. "Extra Bacon (+ KSh 200)".
package pricing

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/unicode/norm"

	"smartserve/internal/models"
)

// deltaPattern matches "(+ KSh 30)", "(-KSh 50)", "(+ ksh 100)".
var deltaPattern = regexp.MustCompile(`(?i)\(([+-])\s*KSh\s*(\d+)\)`)

var (
	ErrUnknownModifier = errors.New("unknown modifier")
	ErrUnknownOption   = errors.New("unknown option")
	ErrTooManyOptions  = errors.New("too many options for single-select modifier")
	ErrDuplicateOption = errors.New("option selected twice")
)

var printer = message.NewPrinter(language.English)

// Delta returns the signed price impact encoded in an option label.
// Labels without a recognised suffix, or with digits that do not fit an int,
// contribute 0.
func Delta(option string) int {
	m := deltaPattern.FindStringSubmatch(norm.NFKC.String(option))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return 0
	}
	if m[1] == "-" {
		return -n
	}
	return n
}

// LineTotal returns max(0, base + sum of the deltas of every selected option).
func LineTotal(base int, selected models.Selection) int {
	total := base
	for _, options := range selected {
		for _, o := range options {
			total += Delta(o)
		}
	}
	if total < 0 {
		return 0
	}
	return total
}

// Quote validates a selection against the item's modifier groups and prices it.
func Quote(item *models.MenuItem, selected models.Selection) (int, error) {
	for label, options := range selected {
		group, ok := item.Modifier(label)
		if !ok {
			return 0, fmt.Errorf("%w: %q on %s", ErrUnknownModifier, label, item.Name)
		}
		if group.Kind == models.ModifierSingle && len(options) > 1 {
			return 0, fmt.Errorf("%w: %q", ErrTooManyOptions, label)
		}
		seen := make(map[string]bool, len(options))
		for _, o := range options {
			if !group.HasOption(o) {
				return 0, fmt.Errorf("%w: %q in %q", ErrUnknownOption, o, label)
			}
			if seen[o] {
				return 0, fmt.Errorf("%w: %q in %q", ErrDuplicateOption, o, label)
			}
			seen[o] = true
		}
	}
	return LineTotal(item.Price, selected), nil
}

// FormatKSh renders an amount with thousands separators, e.g. "KSh 1,340".
func FormatKSh(amount int) string {
	return printer.Sprintf("KSh %d", amount)
}
