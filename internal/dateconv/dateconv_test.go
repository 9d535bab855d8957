package dateconv

import "testing"

func TestSerialToISO_Epoch(t *testing.T) {
	if got := SerialToISO(1); got != "1900-01-01" {
		t.Errorf("got %q, want 1900-01-01", got)
	}
}

func TestSerialToISO_LeapYearBugDay60(t *testing.T) {
	if got := SerialToISO(60); got != "1900-02-29" {
		t.Errorf("got %q, want fictitious 1900-02-29", got)
	}
}

func TestSerialToISO_DayAfterBug(t *testing.T) {
	if got := SerialToISO(61); got != "1900-03-01" {
		t.Errorf("got %q, want 1900-03-01", got)
	}
}

func TestSerialToISO_WithTimeFraction(t *testing.T) {
	if got := SerialToISO(45292.5); got != "2024-01-01 12:00:00" {
		t.Errorf("got %q, want 2024-01-01 12:00:00", got)
	}
}

func TestSerialToISO_WholeDay(t *testing.T) {
	if got := SerialToISO(45292); got != "2024-01-01" {
		t.Errorf("got %q, want 2024-01-01", got)
	}
}

func TestSerialToISO_TimeOnly(t *testing.T) {
	if got := SerialToISO(0.5); got != "12:00:00" {
		t.Errorf("got %q, want 12:00:00", got)
	}
}

func TestSerialToISO_YearCap(t *testing.T) {
	if got := SerialToISO(2_958_465); got != "9999-12-31" {
		t.Errorf("got %q, want 9999-12-31", got)
	}
}

func TestSerialToISO_NegativeAndZeroFallback(t *testing.T) {
	if got := SerialToISO(-5); got != "-5" {
		t.Errorf("got %q, want -5", got)
	}
	if got := SerialToISO(0); got != "0" {
		t.Errorf("got %q, want 0", got)
	}
	if got := SerialToISO(3_000_000); got != "3000000" {
		t.Errorf("got %q, want 3000000", got)
	}
}

func TestIsDateFormatString(t *testing.T) {
	cases := []struct {
		format string
		want   bool
	}{
		{"yyyy-mm-dd", true},
		{"h:mm:ss AM/PM", true},
		{"0.00", false},
		{"#,##0", false},
		{`"Total: "0.00`, false},
		{`[Red]0.00`, false},
		{"General", false},
		{"yyyy-mm-dd #0", false},
		{`"day"`, false},
	}
	for _, c := range cases {
		if got := IsDateFormatString(c.format); got != c.want {
			t.Errorf("IsDateFormatString(%q) = %v, want %v", c.format, got, c.want)
		}
	}
}

func TestResolveDateStyles(t *testing.T) {
	ids := []uint16{14, 1, 164, 0}
	custom := map[uint16]string{164: "yyyy/mm/dd"}
	got := ResolveDateStyles(ids, custom)
	want := []bool{true, false, true, false}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %v want %v", i, got[i], want[i])
		}
	}
}
