package tuner

import "testing"

func TestFrequencyString(t *testing.T) {
	tests := []struct {
		f    Frequency
		want string
	}{
		{875, "87.5"},
		{1000, "100.0"},
		{1080, "108.0"},
		{Invalid, "invalid"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("Frequency(%d).String() = %q, want %q", int(tt.f), got, tt.want)
		}
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{"87.5", 875, false},
		{" 90 ", 900, false},
		{"101.69", 1017, false},
		{"fm", Invalid, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFrequency(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFrequency(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestBandContainsAndNext(t *testing.T) {
	b := DefaultBand
	if !b.Contains(875) || !b.Contains(1080) || b.Contains(874) || b.Contains(1081) {
		t.Fatal("band edges wrong")
	}
	if got := b.Next(1080, true); got != 875 {
		t.Errorf("Next(108.0, up) = %s, want 87.5", got)
	}
	if got := b.Next(875, false); got != 1080 {
		t.Errorf("Next(87.5, down) = %s, want 108.0", got)
	}
	if got := len(b.Channels()); got != 206 {
		t.Errorf("len(Channels()) = %d, want 206", got)
	}

	wide := Band{Low: 875, High: 1079, Step: 2}
	if wide.Contains(876) {
		t.Error("off-raster frequency accepted")
	}
	if err := (Band{Low: 900, High: 900, Step: 1}).Validate(); err == nil {
		t.Error("empty band validated")
	}
}

func TestTrimRDS(t *testing.T) {
	if got := TrimRDS([]byte("RADIO 1\x00\x00junk")); got != "RADIO 1" {
		t.Errorf("TrimRDS = %q", got)
	}
	if !(RDSEventProgramService | RDSEventAF).Has(RDSEventAF) {
		t.Error("Has(AF) = false")
	}
}
