package loader

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeInserter scripts per-call outcomes and records every document it sees.
type fakeInserter struct {
	docs    []map[string]any
	failOn  map[int]error // 1-based call index -> error
	nackOn  map[int]bool  // 1-based call index -> unacknowledged
	calls   int
}

func (f *fakeInserter) InsertOne(ctx context.Context, doc map[string]any) (bool, error) {
	f.calls++
	f.docs = append(f.docs, doc)
	if err, ok := f.failOn[f.calls]; ok {
		return false, err
	}
	if f.nackOn[f.calls] {
		return false, nil
	}
	return true, nil
}

func records(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{
			"cve": map[string]any{"id": "CVE-2024-000" + string(rune('1'+i))},
		}
	}
	return out
}

func TestLoad_AllInserted(t *testing.T) {
	target := &fakeInserter{}
	summary := New(target).Load(context.Background(), records(3))

	if summary.Inserted != 3 || summary.Total != 3 {
		t.Errorf("Summary = %+v, want inserted=3 total=3", summary)
	}
}

func TestLoad_FailureDoesNotStopBatch(t *testing.T) {
	target := &fakeInserter{
		failOn: map[int]error{3: errors.New("duplicate key")},
	}

	summary := New(target).Load(context.Background(), records(5))

	if summary.Inserted != 4 {
		t.Errorf("Inserted = %d, want 4", summary.Inserted)
	}
	if summary.Total != 5 {
		t.Errorf("Total = %d, want 5", summary.Total)
	}
	if target.calls != 5 {
		t.Errorf("Insert calls = %d, want 5 (batch must run to completion)", target.calls)
	}
}

func TestLoad_UnacknowledgedNotCounted(t *testing.T) {
	target := &fakeInserter{
		nackOn: map[int]bool{2: true},
	}

	summary := New(target).Load(context.Background(), records(3))

	if summary.Inserted != 2 {
		t.Errorf("Inserted = %d, want 2 (unacknowledged write is not an insert)", summary.Inserted)
	}
	if target.calls != 3 {
		t.Errorf("Insert calls = %d, want 3", target.calls)
	}
}

func TestLoad_EmptyBatch(t *testing.T) {
	target := &fakeInserter{}
	summary := New(target).Load(context.Background(), nil)

	if summary.Inserted != 0 || summary.Total != 0 {
		t.Errorf("Summary = %+v, want zero", summary)
	}
	if target.calls != 0 {
		t.Errorf("Insert calls = %d, want 0", target.calls)
	}
}

func TestLoad_StampsIngestionTimestamp(t *testing.T) {
	target := &fakeInserter{}
	fixed := time.Date(2024, 5, 17, 9, 30, 15, 123_000_000, time.UTC)

	l := New(target)
	l.SetNow(func() time.Time { return fixed })
	l.Load(context.Background(), records(1))

	got, ok := target.docs[0]["ingestionTimestamp"].(string)
	if !ok {
		t.Fatal("ingestionTimestamp missing or not a string")
	}
	if got != "2024-05-17T09:30:15.123Z" {
		t.Errorf("ingestionTimestamp = %q, want %q", got, "2024-05-17T09:30:15.123Z")
	}
}

func TestLoad_TimestampIsValidISO8601(t *testing.T) {
	target := &fakeInserter{}
	New(target).Load(context.Background(), records(1))

	stamp := target.docs[0]["ingestionTimestamp"].(string)
	parsed, err := time.Parse(TimestampLayout, stamp)
	if err != nil {
		t.Fatalf("Timestamp %q does not parse: %v", stamp, err)
	}
	if parsed.Location() != time.UTC {
		t.Errorf("Timestamp %q is not UTC", stamp)
	}
	// Millisecond precision: exactly three fractional digits.
	if len(stamp) != len("2024-05-17T09:30:15.123Z") {
		t.Errorf("Timestamp %q has unexpected length", stamp)
	}
}

func TestLoad_OverwritesExistingTimestamp(t *testing.T) {
	target := &fakeInserter{}
	fixed := time.Date(2024, 5, 17, 9, 30, 15, 0, time.UTC)

	l := New(target)
	l.SetNow(func() time.Time { return fixed })
	l.Load(context.Background(), []map[string]any{
		{"cve": map[string]any{"id": "CVE-2024-0001"}, "ingestionTimestamp": "stale"},
	})

	if got := target.docs[0]["ingestionTimestamp"]; got != "2024-05-17T09:30:15.000Z" {
		t.Errorf("ingestionTimestamp = %v, want fresh stamp", got)
	}
}

func TestLoad_Idempotence(t *testing.T) {
	target := &fakeInserter{}
	batch := records(4)

	l := New(target)
	first := l.Load(context.Background(), batch)
	second := l.Load(context.Background(), batch)

	// No deduplication: both runs insert every record independently.
	if first.Inserted != 4 || second.Inserted != 4 {
		t.Errorf("Inserted = %d then %d, want 4 both times", first.Inserted, second.Inserted)
	}
	if target.calls != 8 {
		t.Errorf("Insert calls = %d, want 8", target.calls)
	}
}

func TestRecordID(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{
			name:   "nested id present",
			record: map[string]any{"cve": map[string]any{"id": "CVE-2024-1234"}},
			want:   "CVE-2024-1234",
		},
		{
			name:   "no cve object",
			record: map[string]any{"other": 1},
			want:   "unknown",
		},
		{
			name:   "cve not an object",
			record: map[string]any{"cve": "CVE-2024-1234"},
			want:   "unknown",
		},
		{
			name:   "id not a string",
			record: map[string]any{"cve": map[string]any{"id": 42}},
			want:   "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := recordID(tt.record); got != tt.want {
				t.Errorf("recordID() = %q, want %q", got, tt.want)
			}
		})
	}
}
