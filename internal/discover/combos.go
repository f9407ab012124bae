package discover

// maxDatesPerSide caps the outbound and return date lists, bounding the
// cross product at 9 combinations.
const maxDatesPerSide = 3

// Combinations builds the cross product of outbound and return dates,
// keeping only pairs where the return falls after the outbound. Dates
// are ISO (YYYY-MM-DD) strings, so lexicographic order is date order.
// Lists beyond the cap are truncated.
func Combinations(outboundDates, returnDates []string) []DateCombo {
	if len(outboundDates) > maxDatesPerSide {
		outboundDates = outboundDates[:maxDatesPerSide]
	}
	if len(returnDates) > maxDatesPerSide {
		returnDates = returnDates[:maxDatesPerSide]
	}

	var combos []DateCombo
	for _, out := range outboundDates {
		for _, ret := range returnDates {
			if ret <= out {
				continue
			}
			combos = append(combos, DateCombo{Outbound: out, Return: ret})
		}
	}
	return combos
}
