package model

import "testing"

func TestDisplayName(t *testing.T) {
	alice := User{ID: 1, Username: "alice"}
	bob := User{ID: 2, Username: "bob"}

	tests := []struct {
		name   string
		conv   Conversation
		selfID int64
		want   string
	}{
		{
			name:   "group uses group name",
			conv:   Conversation{Name: "team", IsGroup: true, Participants: []User{alice, bob}},
			selfID: 1,
			want:   "team",
		},
		{
			name:   "direct uses other participant",
			conv:   Conversation{IsGroup: false, Participants: []User{alice, bob}},
			selfID: 1,
			want:   "bob",
		},
		{
			name:   "direct from the other side",
			conv:   Conversation{IsGroup: false, Participants: []User{alice, bob}},
			selfID: 2,
			want:   "alice",
		},
		{
			name:   "no other participant falls back to name",
			conv:   Conversation{Name: "self", IsGroup: false, Participants: []User{alice}},
			selfID: 1,
			want:   "self",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conv.DisplayName(tt.selfID); got != tt.want {
				t.Errorf("DisplayName(%d) = %q, want %q", tt.selfID, got, tt.want)
			}
		})
	}
}
