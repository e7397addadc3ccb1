package assist

import (
	"testing"
	"time"
)

func TestResolveDueTime(t *testing.T) {
	sp, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// Fixed reference: Tuesday 2026-03-10 14:00 in São Paulo (UTC-3).
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, sp)

	cases := []struct {
		name    string
		date    string
		time    string
		want    time.Time
		wantErr bool
	}{
		{
			name: "today with time",
			date: "today", time: "18:30",
			want: time.Date(2026, 3, 10, 18, 30, 0, 0, sp),
		},
		{
			name: "tomorrow default time",
			date: "tomorrow", time: "",
			want: time.Date(2026, 3, 11, 9, 0, 0, 0, sp),
		},
		{
			name: "iso date",
			date: "2026-04-01", time: "07:15",
			want: time.Date(2026, 4, 1, 7, 15, 0, 0, sp),
		},
		{
			name: "slash date",
			date: "25/12/2026", time: "20:00",
			want: time.Date(2026, 12, 25, 20, 0, 0, 0, sp),
		},
		{
			name: "bare hour",
			date: "today", time: "7",
			want: time.Date(2026, 3, 10, 7, 0, 0, 0, sp),
		},
		{
			name: "empty date means today",
			date: "", time: "10:00",
			want: time.Date(2026, 3, 10, 10, 0, 0, 0, sp),
		},
		{name: "garbage date", date: "someday", time: "10:00", wantErr: true},
		{name: "garbage time", date: "today", time: "half past", wantErr: true},
		{name: "hour out of range", date: "today", time: "25:00", wantErr: true},
		{name: "minute out of range", date: "today", time: "10:75", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ResolveDueTime(tc.date, tc.time, sp, now)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got %v", tc.name, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("%s: want %v, got %v", tc.name, tc.want, got)
		}
		if got.Location() != time.UTC {
			t.Fatalf("%s: result must be UTC, got %v", tc.name, got.Location())
		}
	}
}

func TestResolveDueTimeNilLocation(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	got, err := ResolveDueTime("tomorrow", "", nil, now)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}
