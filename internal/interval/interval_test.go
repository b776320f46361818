package interval

import (
	"reflect"
	"testing"
	"time"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dates(ss ...string) []time.Time {
	out := make([]time.Time, len(ss))
	for i, s := range ss {
		out[i] = d(s)
	}
	return out
}

func ranges(pairs ...[2]string) []Range {
	out := make([]Range, len(pairs))
	for i, p := range pairs {
		out[i] = Range{Start: d(p[0]), End: d(p[1])}
	}
	return out
}

func TestMissingEmptyCoverageReturnsWholeRange(t *testing.T) {
	r := Range{Start: d("2024-01-02"), End: d("2024-01-05")}
	got := Missing(r, nil)
	want := []Range{r}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Missing() = %+v, want %+v", got, want)
	}
}

func TestMissingFullCoverageReturnsNil(t *testing.T) {
	r := Range{Start: d("2024-01-02"), End: d("2024-01-05")}
	covered := dates("2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05")
	got := Missing(r, covered)
	if got != nil {
		t.Errorf("Missing() = %+v, want nil", got)
	}
}

func TestMissingSingleInteriorGap(t *testing.T) {
	r := Range{Start: d("2024-01-02"), End: d("2024-01-05")}
	covered := dates("2024-01-02", "2024-01-05")
	got := Missing(r, covered)
	want := []Range{{Start: d("2024-01-03"), End: d("2024-01-04")}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Missing() = %+v, want %+v", got, want)
	}
}

func TestMissingMultipleGaps(t *testing.T) {
	r := Range{Start: d("2024-01-01"), End: d("2024-01-10")}
	covered := dates("2024-01-01", "2024-01-04", "2024-01-05", "2024-01-10")
	got := Missing(r, covered)
	want := []Range{
		{Start: d("2024-01-02"), End: d("2024-01-03")},
		{Start: d("2024-01-06"), End: d("2024-01-09")},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Missing() = %+v, want %+v", got, want)
	}
}

func TestMissingCoverageOutsideRangeIgnored(t *testing.T) {
	r := Range{Start: d("2024-01-02"), End: d("2024-01-03")}
	covered := dates("2023-12-31", "2024-01-10")
	got := Missing(r, covered)
	want := []Range{r}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Missing() = %+v, want %+v", got, want)
	}
}

func TestMissingSingleDayRange(t *testing.T) {
	r := Range{Start: d("2024-01-02"), End: d("2024-01-02")}
	if got := Missing(r, nil); !reflect.DeepEqual(got, []Range{r}) {
		t.Errorf("Missing() = %+v, want %+v", got, []Range{r})
	}
	if got := Missing(r, dates("2024-01-02")); got != nil {
		t.Errorf("Missing() = %+v, want nil", got)
	}
}

func TestMissingInvalidRangeReturnsNil(t *testing.T) {
	r := Range{Start: d("2024-01-05"), End: d("2024-01-01")}
	if got := Missing(r, nil); got != nil {
		t.Errorf("Missing() on reversed range = %+v, want nil", got)
	}
}

func TestUnionMergesOverlappingAndAdjacent(t *testing.T) {
	in := ranges([2]string{"2024-01-01", "2024-01-03"}, [2]string{"2024-01-04", "2024-01-05"}, [2]string{"2024-02-01", "2024-02-02"})
	got := Union(in)
	want := ranges([2]string{"2024-01-01", "2024-01-05"}, [2]string{"2024-02-01", "2024-02-02"})
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Union() = %+v, want %+v", got, want)
	}
}

func TestUnionUnsortedInput(t *testing.T) {
	in := ranges([2]string{"2024-02-01", "2024-02-02"}, [2]string{"2024-01-01", "2024-01-03"})
	got := Union(in)
	want := ranges([2]string{"2024-01-01", "2024-01-03"}, [2]string{"2024-02-01", "2024-02-02"})
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Union() = %+v, want %+v", got, want)
	}
}

func TestSubtractRemovesCoveredRanges(t *testing.T) {
	base := Range{Start: d("2024-01-01"), End: d("2024-01-10")}
	minus := ranges([2]string{"2024-01-01", "2024-01-03"}, [2]string{"2024-01-08", "2024-01-10"})
	got := Subtract(base, minus)
	want := []Range{{Start: d("2024-01-04"), End: d("2024-01-07")}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Subtract() = %+v, want %+v", got, want)
	}
}

func TestSubtractNothingToRemove(t *testing.T) {
	base := Range{Start: d("2024-01-01"), End: d("2024-01-03")}
	got := Subtract(base, nil)
	want := []Range{base}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Subtract() = %+v, want %+v", got, want)
	}
}

// TestMissingSoundness exercises the gap-fill soundness property from the
// spec directly: for any requested range and any subset of its dates
// marked covered, the union of the returned sub-ranges plus the covered
// dates reconstructs exactly the requested range, with no overlaps.
func TestMissingSoundness(t *testing.T) {
	r := Range{Start: d("2024-01-01"), End: d("2024-01-20")}
	covered := dates("2024-01-02", "2024-01-03", "2024-01-07", "2024-01-15", "2024-01-16", "2024-01-20")

	gaps := Missing(r, covered)

	coveredSet := make(map[time.Time]bool, len(covered))
	for _, c := range covered {
		coveredSet[c] = true
	}

	reconstructed := make(map[time.Time]bool)
	for _, g := range gaps {
		for day := g.Start; !day.After(g.End); day = day.Add(24 * time.Hour) {
			if reconstructed[day] {
				t.Fatalf("date %s covered by more than one gap", day)
			}
			if coveredSet[day] {
				t.Fatalf("date %s reported as a gap but was in covered set", day)
			}
			reconstructed[day] = true
		}
	}

	for day := r.Start; !day.After(r.End); day = day.Add(24 * time.Hour) {
		if !coveredSet[day] && !reconstructed[day] {
			t.Fatalf("date %s neither covered nor reported missing", day)
		}
	}
}
