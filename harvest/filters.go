package harvest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/qharvest/browse"
)

// Category is one of the site's question filters.
type Category struct {
	// Label is the uppercase caption shown in the filters bar.
	Label string
	// Slug is the class-name suffix of the filter's icon.
	Slug string
}

var (
	// CategoryAgree filters to questions where both parties answered the
	// same.
	CategoryAgree = Category{Label: "AGREE", Slug: "agree"}
	// CategoryDisagree filters to questions answered differently.
	CategoryDisagree = Category{Label: "DISAGREE", Slug: "disagree"}
	// CategoryFindOut filters to the subject's questions the harvesting
	// account has not answered yet.
	CategoryFindOut = Category{Label: "FIND OUT", Slug: "findOut"}
)

// filterCount reads the question count displayed next to a category in
// the filters bar. The bar renders as caption/number pairs, one per line.
func filterCount(page browse.Surface, sel Selectors, cat Category) (int, error) {
	bar, err := need(page.Find(sel.FiltersBar), "question filters bar")
	if err != nil {
		return 0, err
	}
	text, err := bar.Text()
	if err != nil {
		return 0, err
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != cat.Label {
			continue
		}
		if i+1 >= len(lines) {
			break
		}
		n, err := strconv.Atoi(strings.TrimSpace(lines[i+1]))
		if err != nil {
			return 0, fmt.Errorf("harvest: filter %s count %q: %w", cat.Label, lines[i+1], err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("harvest: filter %s not present in bar", cat.Label)
}

// clickFilter activates a category filter via its icon.
func clickFilter(page browse.Surface, sel Selectors, cat Category) error {
	icon, err := need(page.Find(sel.FilterIcon+cat.Slug), "filter icon "+cat.Slug)
	if err != nil {
		return err
	}
	return icon.Click()
}
