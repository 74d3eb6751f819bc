package redis

import "testing"

func TestStore_KeyPrefix(t *testing.T) {
	cases := []struct {
		prefix string
		key    string
		want   string
	}{
		{"ledger_", "balance:abc", "ledger_balance:abc"},
		{"", "balance:abc", "balance:abc"},
	}
	for _, tc := range cases {
		s := &Store{prefix: tc.prefix}
		if got := s.key(tc.key); got != tc.want {
			t.Errorf("prefix %q: expected %q, got %q", tc.prefix, tc.want, got)
		}
	}
}
