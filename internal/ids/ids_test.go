package ids

import "testing"

func TestMajority(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{1, 1},
		{2, 2},
		{3, 2},
		{5, 3},
		{7, 4},
	}
	for _, c := range cases {
		if got := Majority(c.n); got != c.want {
			t.Errorf("Majority(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestProposalNumberNone(t *testing.T) {
	if !None.IsNone() {
		t.Fatal("None should report IsNone")
	}
	if ProposalNumber(0).IsNone() {
		t.Fatal("0 is a valid proposal number, not None")
	}
	if !ProposalNumber(3).Greater(None) {
		t.Fatal("any proposal number should be greater than None")
	}
}
