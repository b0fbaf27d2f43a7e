package store

import "testing"

func TestMakeIdentity(t *testing.T) {
	tests := []struct {
		name      string
		charName  string
		className string
		want      Identity
	}{
		{"simple", "Bob", "Iop", "bob_iop"},
		{"spaces and punctuation", "Bob the Bold!", "Iop", "bobthebold_iop"},
		{"case only variants collide", "BOB", "IOP", "bob_iop"},
		{"digits kept", "Bob2", "Cra", "bob2_cra"},
		{"empty class", "Bob", "", "bob_"},
		{"unicode letters kept", "Élise", "Eniripsa", "élise_eniripsa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MakeIdentity(tt.charName, tt.className); got != tt.want {
				t.Errorf("MakeIdentity(%q, %q) = %q, want %q", tt.charName, tt.className, got, tt.want)
			}
		})
	}
}
