package dispute

import (
	"context"
	"errors"
	"testing"

	"retouchflow/auth"
)

func TestSplitAmounts(t *testing.T) {
	cases := []struct {
		name        string
		outstanding int64
		bps         int
		release     int64
		refund      int64
	}{
		{"all to seller", 1000, 10000, 1000, 0},
		{"all to buyer", 1000, 0, 0, 1000},
		{"even split", 1000, 5000, 500, 500},
		{"odd amount favors buyer", 1001, 5000, 500, 501},
		{"one coin favors buyer", 1, 5000, 0, 1},
		{"thirds floor seller", 100, 3333, 33, 67},
		{"zero outstanding", 0, 5000, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			release, refund, err := SplitAmounts(tc.outstanding, tc.bps)
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if release != tc.release || refund != tc.refund {
				t.Errorf("got release=%d refund=%d, want release=%d refund=%d", release, refund, tc.release, tc.refund)
			}
			if release+refund != tc.outstanding {
				t.Errorf("split must conserve the outstanding amount")
			}
		})
	}
}

func TestSplitAmounts_RejectsBadShare(t *testing.T) {
	if _, _, err := SplitAmounts(100, -1); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction for negative share, got %v", err)
	}
	if _, _, err := SplitAmounts(100, 10001); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction for share above 100%%, got %v", err)
	}
}

func TestResolve_SupportOnly(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil)

	for _, role := range []auth.Role{auth.RoleBuyer, auth.RoleSeller} {
		_, err := svc.Resolve(context.Background(), auth.Actor{ID: "u1", Role: role}, ResolveParams{
			JobID:  "job-1",
			Action: ActionRefundBuyer,
		})
		if !errors.Is(err, ErrRoleNotPermitted) {
			t.Errorf("expected ErrRoleNotPermitted for %s, got %v", role, err)
		}
	}
}
