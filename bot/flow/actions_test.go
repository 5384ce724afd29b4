package flow

import "testing"

func TestActionEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Action{
		{OperatorID: 42, GroupID: 7},
		{OperatorID: 42},
		{OperatorID: -100123, GroupID: 9000000000},
	}
	for _, want := range cases {
		got, err := DecodeAction(want.Encode())
		if err != nil {
			t.Fatalf("DecodeAction(%q): %v", want.Encode(), err)
		}
		if got != want {
			t.Fatalf("round trip = %+v, want %+v", got, want)
		}
	}
}

func TestDecodeActionRejectsGarbage(t *testing.T) {
	for _, payload := range []string{"", "abc", "1:xyz", ":", "1:2:3"} {
		if _, err := DecodeAction(payload); err == nil {
			t.Errorf("DecodeAction(%q) accepted garbage", payload)
		}
	}
}
