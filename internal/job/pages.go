package job

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// PageRange is a 1-based inclusive page span
type PageRange struct {
	Start int
	End   int
}

// String renders the range the way it is written on input ("3" or "2-5")
func (r PageRange) String() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Len returns the number of pages in the range
func (r PageRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Clamp intersects the range with [1, pageCount]. ok is false when the
// intersection is empty.
func (r PageRange) Clamp(pageCount int) (PageRange, bool) {
	start := max(r.Start, 1)
	end := min(r.End, pageCount)
	if start > end {
		return PageRange{}, false
	}
	return PageRange{Start: start, End: end}, true
}

// Indices returns the 0-based page indices covered by the range
func (r PageRange) Indices() []int {
	out := make([]int, 0, r.Len())
	for p := r.Start; p <= r.End; p++ {
		out = append(out, p-1)
	}
	return out
}

// ParsePageRanges parses "1-3, 5, 7-9" into ordered ranges. A single integer
// n means [n,n]. Syntax errors and start > end are InvalidOptions; bounds,
// including page 0, are left to Clamp once the page count is known.
func ParsePageRanges(spec string) ([]PageRange, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, InvalidOptions("at least one page range is required")
	}

	var ranges []PageRange
	for part := range strings.SplitSeq(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		startStr, endStr, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(startStr))
		if err != nil {
			return nil, InvalidOptions("invalid page number in %q", part)
		}
		end := start
		if isRange {
			end, err = strconv.Atoi(strings.TrimSpace(endStr))
			if err != nil {
				return nil, InvalidOptions("invalid page range %q", part)
			}
		}

		if start > end {
			return nil, InvalidOptions("page range %q has start after end", part)
		}
		ranges = append(ranges, PageRange{Start: start, End: end})
	}

	if len(ranges) == 0 {
		return nil, InvalidOptions("at least one page range is required")
	}
	return ranges, nil
}

// PageSelection is a set of pages, or every page when All is set
type PageSelection struct {
	All    bool
	Ranges []PageRange
}

// ParsePageSelection accepts "all" (or blank) or a page range list
func ParsePageSelection(spec string) (PageSelection, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, "all") {
		return PageSelection{All: true}, nil
	}
	ranges, err := ParsePageRanges(spec)
	if err != nil {
		return PageSelection{}, err
	}
	return PageSelection{Ranges: ranges}, nil
}

// Pages resolves the selection against pageCount into sorted, unique,
// 1-based page numbers. Out-of-bounds pages are dropped.
func (s PageSelection) Pages(pageCount int) []int {
	if s.All {
		pages := make([]int, pageCount)
		for i := range pageCount {
			pages[i] = i + 1
		}
		return pages
	}

	seen := make(map[int]bool)
	var pages []int
	for _, r := range s.Ranges {
		clamped, ok := r.Clamp(pageCount)
		if !ok {
			continue
		}
		for p := clamped.Start; p <= clamped.End; p++ {
			if !seen[p] {
				seen[p] = true
				pages = append(pages, p)
			}
		}
	}
	slices.Sort(pages)
	return pages
}
