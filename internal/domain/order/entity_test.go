package order

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPendingPayment, StatusConfirmed, true},
		{StatusPendingPayment, StatusCancelled, true},
		{StatusPendingPayment, StatusShipping, false},
		{StatusConfirmed, StatusProcessing, true},
		{StatusConfirmed, StatusShipping, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusProcessing, StatusShipping, true},
		{StatusProcessing, StatusCancelled, false},
		{StatusShipping, StatusDelivered, true},
		{StatusShipping, StatusCancelled, false},
		{StatusDelivered, StatusCompleted, true},
		{StatusDelivered, StatusCancelled, false},
		{StatusCompleted, StatusDelivered, false},
		{StatusCancelled, StatusConfirmed, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestSellerUpdatableExcludesSettlementStatuses(t *testing.T) {
	for _, st := range []Status{StatusConfirmed, StatusDelivered, StatusCompleted, StatusRefunded} {
		if sellerUpdatable[st] {
			t.Errorf("seller must not be able to set %s directly", st)
		}
	}
	if !operatorUpdatable[StatusDelivered] {
		t.Error("operator should be able to force DELIVERED")
	}
	if operatorUpdatable[StatusCompleted] {
		t.Error("COMPLETED must only be reachable through settlement")
	}
}
