package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()

	createdAt := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	id := uuid.New()

	cursor, err := ParseCursor(EncodeCursor(createdAt, id))
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if cursor == nil {
		t.Fatal("expected a cursor, got nil")
	}
	if !cursor.CreatedAt.Equal(createdAt) {
		t.Errorf("created_at = %s, want %s", cursor.CreatedAt, createdAt)
	}
	if cursor.ID != id {
		t.Errorf("id = %s, want %s", cursor.ID, id)
	}
}

func TestParseCursorEmptyMeansStart(t *testing.T) {
	t.Parallel()

	cursor, err := ParseCursor("  ")
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if cursor != nil {
		t.Fatalf("expected nil cursor for blank token, got %+v", cursor)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, token := range []string{"not-base64!", "bm8tc2VwYXJhdG9y", EncodeCursor(time.Now(), uuid.New()) + "x"} {
		if _, err := ParseCursor(token); err == nil {
			t.Errorf("token %q: expected error", token)
		}
	}
}

func TestNormalizeLimitClamps(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want int }{
		{-1, DefaultLimit},
		{0, DefaultLimit},
		{1, 1},
		{MaxLimit, MaxLimit},
		{MaxLimit + 50, MaxLimit},
	}
	for _, tc := range cases {
		if got := NormalizeLimit(tc.in); got != tc.want {
			t.Errorf("NormalizeLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if got := LimitWithBuffer(10); got != 11 {
		t.Errorf("LimitWithBuffer(10) = %d, want 11", got)
	}
}
