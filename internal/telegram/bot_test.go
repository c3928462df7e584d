package telegram

import "testing"

func TestParseForecastArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      string
		wantBolus float64
		wantCarbs float64
		wantErr   bool
	}{
		{"empty", "", 0, 0, false},
		{"bolus only", "2.5", 2.5, 0, false},
		{"bolus and carbs", "2.5 45", 2.5, 45, false},
		{"not a number", "abc", 0, 0, true},
		{"negative bolus", "-1", 0, 0, true},
		{"implausible bolus", "80", 0, 0, true},
		{"implausible carbs", "2 900", 0, 0, true},
		{"too many fields", "1 2 3", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bolus, carbs, err := parseForecastArgs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseForecastArgs(%q) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if bolus != tt.wantBolus || carbs != tt.wantCarbs {
				t.Errorf("parseForecastArgs(%q) = %v, %v, want %v, %v",
					tt.args, bolus, carbs, tt.wantBolus, tt.wantCarbs)
			}
		})
	}
}
