package catalog

import (
	"sort"
	"testing"
)

func TestDescribe(t *testing.T) {
	if got := Describe("Основы Git"); got == NoDescription || got == "" {
		t.Errorf("Describe(Основы Git) = %q; want catalog description", got)
	}
	if got := Describe("Квантовая кулинария"); got != NoDescription {
		t.Errorf("Describe(unknown) = %q; want %q", got, NoDescription)
	}
}

func TestCourses_Sorted(t *testing.T) {
	got := Courses()
	if len(got) != len(courses) {
		t.Fatalf("Courses() returned %d names; want %d", len(got), len(courses))
	}
	if !sort.StringsAreSorted(got) {
		t.Errorf("Courses() not sorted: %v", got)
	}
}
