package discover

import "errors"

// ErrNoTierMatch means destinations exist but no budget tier reached its
// minimum result count; the caller should report "no results" rather
// than show a misleading partial list.
var ErrNoTierMatch = errors.New("no budget tier satisfied its minimum result count")

// tier is one step of the budget degradation policy. Destinations priced
// within [MinFraction*budget, budget] qualify; the tier wins when at
// least MinResults qualify.
type tier struct {
	Name        string
	MinFraction float64
	MinResults  int
}

// Tiers are evaluated in strict order and the first satisfying tier is
// terminal.
var budgetTiers = []tier{
	{Name: "A", MinFraction: 0.8, MinResults: 5},
	{Name: "B", MinFraction: 0.6, MinResults: 3},
	{Name: "C", MinFraction: 0, MinResults: 3},
}

// ApplyBudgetTiers selects the destinations to show for a target budget.
// Input must be sorted ascending by price (as Search returns it); the
// returned slice preserves that order.
func ApplyBudgetTiers(dests []AggregatedDestination, budget float64) ([]AggregatedDestination, string, error) {
	for _, t := range budgetTiers {
		floor := t.MinFraction * budget
		var matched []AggregatedDestination
		for _, d := range dests {
			if d.Price >= floor && d.Price <= budget {
				matched = append(matched, d)
			}
		}
		if len(matched) >= t.MinResults {
			return matched, t.Name, nil
		}
	}
	return nil, "", ErrNoTierMatch
}
