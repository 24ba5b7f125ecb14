package harvest

import (
	"strings"
	"testing"
)

func TestFilterCount(t *testing.T) {
	sel := defaultSelectors()
	page := newFakeSurface()
	page.kids[sel.FiltersBar] = found(&fakeElement{
		text: "AGREE\n41\nDISAGREE\n7\nFIND OUT\n12",
	})

	tests := []struct {
		cat  Category
		want int
	}{
		{CategoryAgree, 41},
		{CategoryDisagree, 7},
		{CategoryFindOut, 12},
	}
	for _, tt := range tests {
		got, err := filterCount(page, sel, tt.cat)
		if err != nil {
			t.Fatalf("filterCount(%s): %v", tt.cat.Label, err)
		}
		if got != tt.want {
			t.Errorf("filterCount(%s) = %d, want %d", tt.cat.Label, got, tt.want)
		}
	}
}

func TestFilterCount_CategoryAbsent(t *testing.T) {
	sel := defaultSelectors()
	page := newFakeSurface()
	page.kids[sel.FiltersBar] = found(&fakeElement{text: "AGREE\n3"})

	_, err := filterCount(page, sel, CategoryFindOut)
	if err == nil || !strings.Contains(err.Error(), "not present") {
		t.Fatalf("err = %v, want category-absent error", err)
	}
}

func TestFilterCount_MalformedNumber(t *testing.T) {
	sel := defaultSelectors()
	page := newFakeSurface()
	page.kids[sel.FiltersBar] = found(&fakeElement{text: "AGREE\nmany"})

	_, err := filterCount(page, sel, CategoryAgree)
	if err == nil {
		t.Fatal("want parse error, got nil")
	}
}

func TestClickFilter(t *testing.T) {
	sel := defaultSelectors()
	icon := &fakeElement{}
	page := newFakeSurface()
	page.kids[sel.FilterIcon+CategoryDisagree.Slug] = found(icon)

	if err := clickFilter(page, sel, CategoryDisagree); err != nil {
		t.Fatalf("clickFilter: %v", err)
	}
	if icon.clicks != 1 {
		t.Errorf("icon clicks = %d, want 1", icon.clicks)
	}
}
