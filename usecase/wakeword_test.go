package usecase

import "testing"

func TestContainsWakePhraseVariants(t *testing.T) {
	tests := []struct {
		transcript string
		want       bool
	}{
		{"hey donna", true},
		{"hey, donna", true},
		{"hey danna", true},
		{"hay donna", true},
		{"Hey Donna what's up", true},
		{"well HEY DONNA again", true},
		{"so i said hey, donna check the stock", true},
		{"hey diana", false},
		{"donna hey", false},
		{"check the stock levels", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ContainsWakePhrase(tt.transcript); got != tt.want {
			t.Errorf("ContainsWakePhrase(%q) = %v, want %v", tt.transcript, got, tt.want)
		}
	}
}

func TestStripWakePhrase(t *testing.T) {
	tests := []struct {
		transcript string
		want       string
	}{
		{"hey donna check stock", "check stock"},
		{"Hey Donna, check stock", "check stock"},
		{"hey, donna show warehouse capacity", "show warehouse capacity"},
		{"hay donna", ""},
		{"please hey donna help", "please help"},
		{"so hey danna what's in  warehouse b", "so what's in warehouse b"},
		{"no wake phrase here", "no wake phrase here"},
	}

	for _, tt := range tests {
		if got := StripWakePhrase(tt.transcript); got != tt.want {
			t.Errorf("StripWakePhrase(%q) = %q, want %q", tt.transcript, got, tt.want)
		}
	}
}
