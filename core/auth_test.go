package core

import "testing"

func TestSessionAuthenticated(t *testing.T) {
	tests := []struct {
		name string
		sess Session
		want bool
	}{
		{name: "loading", sess: Session{Loading: true}, want: false},
		{name: "loading with identity", sess: Session{Identity: Identity{UID: "u1"}, Loading: true}, want: false},
		{name: "signed out", sess: Session{}, want: false},
		{name: "signed in", sess: Session{Identity: Identity{UID: "u1", Name: "Ada"}}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sess.Authenticated(); got != tt.want {
				t.Errorf("Authenticated() = %v, want %v", got, tt.want)
			}
		})
	}
}
