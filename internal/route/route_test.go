package route

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Location
	}{
		{"", Location{}},
		{"/", Location{}},
		{"/chat", Location{}},
		{"/chat/", Location{}},
		{"/chat/a1", Location{AgentID: "a1"}},
		{"/chat/a1/s1", Location{AgentID: "a1", SessionID: "s1"}},
		{"/chat/a%201/s1/", Location{AgentID: "a 1", SessionID: "s1"}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{"/agents", "/chatroom", "/chat/a/s/extra", "/chat//s1"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) expected error", in)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, loc := range []Location{{}, Agent("a1"), Session("a1", "s 1")} {
		got, err := Parse(loc.String())
		if err != nil || got != loc {
			t.Errorf("Parse(%q) = %+v, %v; want %+v", loc.String(), got, err, loc)
		}
	}
}
