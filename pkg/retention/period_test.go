package retention

import (
	"errors"
	"testing"
	"time"
)

func TestPeriod_CutoffFrom(t *testing.T) {
	now := time.Date(2026, time.March, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		period Period
		want   time.Time
	}{
		{
			name:   "days",
			period: Period{Value: 90, Unit: UnitDays},
			want:   now.AddDate(0, 0, -90),
		},
		{
			name:   "months are calendar accurate",
			period: Period{Value: 1, Unit: UnitMonths},
			// March 31 minus one month normalizes past February's end.
			want: time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC),
		},
		{
			name:   "years",
			period: Period{Value: 7, Unit: UnitYears},
			want:   time.Date(2019, time.March, 31, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.period.CutoffFrom(now)
			if err != nil {
				t.Fatalf("CutoffFrom() failed: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("CutoffFrom() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeriod_CutoffMatchesDayEquivalent(t *testing.T) {
	// A day-denominated period must land exactly AddDate(0, 0, -n) from now.
	now := time.Now()
	period := Period{Value: 30, Unit: UnitDays}

	cutoff, err := period.CutoffFrom(now)
	if err != nil {
		t.Fatalf("CutoffFrom() failed: %v", err)
	}
	if !cutoff.Equal(now.AddDate(0, 0, -30)) {
		t.Errorf("CutoffFrom() = %v, want %v", cutoff, now.AddDate(0, 0, -30))
	}
}

func TestPeriod_UnsupportedUnit(t *testing.T) {
	period := Period{Value: 5, Unit: Unit("fortnights")}

	_, err := period.CutoffFrom(time.Now())
	if err == nil {
		t.Fatal("Expected error for unsupported unit")
	}

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigurationError, got %T", err)
	}
}

func TestPeriod_Validate(t *testing.T) {
	tests := []struct {
		name    string
		period  Period
		wantErr bool
	}{
		{"valid days", Period{Value: 30, Unit: UnitDays}, false},
		{"valid months", Period{Value: 6, Unit: UnitMonths}, false},
		{"valid years", Period{Value: 7, Unit: UnitYears}, false},
		{"zero value", Period{Value: 0, Unit: UnitDays}, true},
		{"negative value", Period{Value: -3, Unit: UnitDays}, true},
		{"unknown unit", Period{Value: 1, Unit: "weeks"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.period.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPeriod_ApproxDays(t *testing.T) {
	tests := []struct {
		period Period
		want   int
	}{
		{Period{Value: 90, Unit: UnitDays}, 90},
		{Period{Value: 3, Unit: UnitMonths}, 90},
		{Period{Value: 2, Unit: UnitYears}, 730},
	}

	for _, tt := range tests {
		if got := tt.period.ApproxDays(); got != tt.want {
			t.Errorf("ApproxDays(%s) = %d, want %d", tt.period, got, tt.want)
		}
	}
}

func TestPeriod_AddToInvertsCutoff(t *testing.T) {
	now := time.Date(2026, time.June, 15, 8, 30, 0, 0, time.UTC)
	period := Period{Value: 4, Unit: UnitMonths}

	later, err := period.AddTo(now)
	if err != nil {
		t.Fatalf("AddTo() failed: %v", err)
	}

	back, err := period.CutoffFrom(later)
	if err != nil {
		t.Fatalf("CutoffFrom() failed: %v", err)
	}
	if !back.Equal(now) {
		t.Errorf("CutoffFrom(AddTo(now)) = %v, want %v", back, now)
	}
}
