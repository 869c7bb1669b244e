package checkout

import (
	"regexp"
	"testing"
	"time"
)

func TestNewOrderNumberFormat(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	number, err := newOrderNumber("VST", now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	pattern := regexp.MustCompile(`^VST-20260829-[A-HJ-NP-Z2-9]{6}$`)
	if !pattern.MatchString(number) {
		t.Fatalf("unexpected order number %q", number)
	}
}

func TestNewOrderNumberIsRandomized(t *testing.T) {
	t.Parallel()

	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		number, err := newOrderNumber("VST", now)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if seen[number] {
			t.Fatalf("duplicate order number %q in 50 draws", number)
		}
		seen[number] = true
	}
}
