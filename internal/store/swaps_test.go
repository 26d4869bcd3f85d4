package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/rewear/rewear/internal/db"
	"github.com/rewear/rewear/internal/model"
)

// completePointsSwap runs a points redemption of item by requester to completion.
func completePointsSwap(t *testing.T, database *sql.DB, requester, owner *model.User, item *model.Item) *model.Swap {
	t.Helper()
	ctx := context.Background()
	s, err := CreateSwap(ctx, database, requester.ID, item.ID, model.SwapModePoints, nil, "")
	if err != nil {
		t.Fatalf("CreateSwap: %v", err)
	}
	if _, err := AcceptSwap(ctx, database, owner.ID, s.ID); err != nil {
		t.Fatalf("AcceptSwap: %v", err)
	}
	s, err = CompleteSwap(ctx, database, s.ID)
	if err != nil {
		t.Fatalf("CompleteSwap: %v", err)
	}
	return s
}

func TestPointsRedemption(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	owner := mustUser(t, database, "owner", 40)
	requester := mustUser(t, database, "requester", 500)
	item := mustItem(t, database, admin, owner, "Leather jacket", 200)

	s, err := CreateSwap(ctx, database, requester.ID, item.ID, model.SwapModePoints, nil, "  love this  ")
	if err != nil {
		t.Fatalf("CreateSwap: %v", err)
	}
	if s.Status != model.SwapPending || s.OwnerID != owner.ID || s.PointsOffered != 200 {
		t.Fatalf("unexpected swap: %+v", s)
	}
	if s.Message != "love this" {
		t.Errorf("expected trimmed message, got %q", s.Message)
	}
	// Nothing is reserved or paid at creation.
	if !mustGetItem(t, database, item.ID).Available {
		t.Error("item reserved at create")
	}
	if mustBalance(t, database, requester.ID) != 500 {
		t.Error("points moved at create")
	}

	s, err = AcceptSwap(ctx, database, owner.ID, s.ID)
	if err != nil {
		t.Fatalf("AcceptSwap: %v", err)
	}
	if s.Status != model.SwapAccepted || s.AcceptedAt == nil {
		t.Fatalf("expected accepted, got %+v", s)
	}
	if mustGetItem(t, database, item.ID).Available {
		t.Error("item not reserved at accept")
	}
	if mustBalance(t, database, requester.ID) != 500 {
		t.Error("points moved at accept")
	}

	s, err = CompleteSwap(ctx, database, s.ID)
	if err != nil {
		t.Fatalf("CompleteSwap: %v", err)
	}
	if s.Status != model.SwapCompleted || s.CompletedAt == nil {
		t.Fatalf("expected completed, got %+v", s)
	}
	if got := mustBalance(t, database, requester.ID); got != 300 {
		t.Errorf("requester balance = %d, want 300", got)
	}
	if got := mustBalance(t, database, owner.ID); got != 240 {
		t.Errorf("owner balance = %d, want 240", got)
	}

	got := mustGetItem(t, database, item.ID)
	if got.OwnerID != requester.ID || !got.Available {
		t.Errorf("expected item to move to requester and be available, got %+v", got)
	}

	// Completed swaps release the item for new swaps.
	if active, err := activeSwapFor(ctx, database, item.ID); err != nil || active != 0 {
		t.Errorf("expected no active swap, got %d, %v", active, err)
	}
}

func TestDirectSwap(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 0)
	wanted := mustItem(t, database, admin, alice, "Wanted coat", 300)
	offerA := mustItem(t, database, admin, bob, "Offer hat", 50)
	offerB := mustItem(t, database, admin, bob, "Offer belt", 40)

	s, err := CreateSwap(ctx, database, bob.ID, wanted.ID, model.SwapModeDirect, []int64{offerA.ID, offerB.ID}, "")
	if err != nil {
		t.Fatalf("CreateSwap: %v", err)
	}
	if len(s.OfferedItemIDs) != 2 || s.PointsOffered != 0 {
		t.Fatalf("unexpected swap: %+v", s)
	}

	if _, err := AcceptSwap(ctx, database, alice.ID, s.ID); err != nil {
		t.Fatalf("AcceptSwap: %v", err)
	}
	for _, id := range []int64{wanted.ID, offerA.ID, offerB.ID} {
		if mustGetItem(t, database, id).Available {
			t.Errorf("item %d not reserved", id)
		}
	}

	if _, err := CompleteSwap(ctx, database, s.ID); err != nil {
		t.Fatalf("CompleteSwap: %v", err)
	}

	if got := mustGetItem(t, database, wanted.ID); got.OwnerID != bob.ID || !got.Available {
		t.Errorf("wanted item: %+v", got)
	}
	for _, id := range []int64{offerA.ID, offerB.ID} {
		if got := mustGetItem(t, database, id); got.OwnerID != alice.ID || !got.Available {
			t.Errorf("offered item %d: %+v", id, got)
		}
	}
	if mustBalance(t, database, alice.ID) != 0 || mustBalance(t, database, bob.ID) != 0 {
		t.Error("direct swap moved points")
	}

	transfers, err := ListTransfers(ctx, database, 0, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(transfers) != 3 {
		t.Errorf("expected 3 item transfers, got %d", len(transfers))
	}
}

func TestCreateSwapErrors(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 100)
	carol := mustUser(t, database, "carol", 0)

	item := mustItem(t, database, admin, alice, "Alice's skirt", 150)
	pending := mustPendingItem(t, database, alice, "Pending skirt", 50)
	bobs := mustItem(t, database, admin, bob, "Bob's jeans", 80)
	bobsPending := mustPendingItem(t, database, bob, "Bob's shorts", 80)
	carols := mustItem(t, database, admin, carol, "Carol's top", 80)

	tests := []struct {
		name    string
		actor   int64
		item    int64
		mode    model.SwapMode
		offered []int64
		kind    model.ErrorKind
	}{
		{"unknown item", bob.ID, 999, model.SwapModePoints, nil, model.KindNotFound},
		{"unknown requester", 999, item.ID, model.SwapModePoints, nil, model.KindNotFound},
		{"bad mode", bob.ID, item.ID, "barter", nil, model.KindInvalid},
		{"offer in points mode", bob.ID, item.ID, model.SwapModePoints, []int64{bobs.ID}, model.KindInvalid},
		{"not approved", bob.ID, pending.ID, model.SwapModePoints, nil, model.KindItemUnavailable},
		{"self swap", alice.ID, item.ID, model.SwapModeDirect, []int64{pending.ID}, model.KindSelfSwap},
		{"insufficient points", bob.ID, item.ID, model.SwapModePoints, nil, model.KindInsufficientPoints},
		{"empty offer", bob.ID, item.ID, model.SwapModeDirect, nil, model.KindInvalidOfferedItems},
		{"duplicate offer", bob.ID, item.ID, model.SwapModeDirect, []int64{bobs.ID, bobs.ID}, model.KindInvalidOfferedItems},
		{"offer not owned", bob.ID, item.ID, model.SwapModeDirect, []int64{carols.ID}, model.KindInvalidOfferedItems},
		{"offer not approved", bob.ID, item.ID, model.SwapModeDirect, []int64{bobsPending.ID}, model.KindInvalidOfferedItems},
		{"offer unknown", bob.ID, item.ID, model.SwapModeDirect, []int64{999}, model.KindInvalidOfferedItems},
	}

	for _, tt := range tests {
		_, err := CreateSwap(ctx, database, tt.actor, tt.item, tt.mode, tt.offered, "")
		if !errors.Is(err, &model.Error{Kind: tt.kind}) {
			t.Errorf("%s: expected %s, got %v", tt.name, tt.kind, err)
		}
	}

	swaps, err := ListSwaps(ctx, database, model.SwapFilter{UserID: bob.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(swaps) != 0 {
		t.Errorf("failed creates left %d swaps", len(swaps))
	}
}

func TestCreateSwapUnavailableItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 500)
	carol := mustUser(t, database, "carol", 500)
	item := mustItem(t, database, admin, alice, "Cargo pants", 100)

	s, err := CreateSwap(ctx, database, bob.ID, item.ID, model.SwapModePoints, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := AcceptSwap(ctx, database, alice.ID, s.ID); err != nil {
		t.Fatal(err)
	}

	// Reserved: carol cannot request it.
	_, err = CreateSwap(ctx, database, carol.ID, item.ID, model.SwapModePoints, nil, "")
	expectKind(t, err, model.KindItemUnavailable)

	swaps, _ := ListSwaps(ctx, database, model.SwapFilter{UserID: carol.ID})
	if len(swaps) != 0 {
		t.Errorf("expected no swap for carol, got %d", len(swaps))
	}
}

func TestSecondActiveSwapRejected(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 500)
	carol := mustUser(t, database, "carol", 500)
	item := mustItem(t, database, admin, alice, "Bomber jacket", 100)
	carols := mustItem(t, database, admin, carol, "Carol's cap", 30)
	other := mustItem(t, database, admin, alice, "Alice's gloves", 30)

	if _, err := CreateSwap(ctx, database, bob.ID, item.ID, model.SwapModePoints, nil, ""); err != nil {
		t.Fatal(err)
	}

	_, err := CreateSwap(ctx, database, carol.ID, item.ID, model.SwapModePoints, nil, "")
	expectKind(t, err, model.KindItemUnavailable)

	// An item committed as an offer cannot be offered again.
	if _, err := CreateSwap(ctx, database, carol.ID, other.ID, model.SwapModeDirect, []int64{carols.ID}, ""); err != nil {
		t.Fatal(err)
	}
	third := mustItem(t, database, admin, alice, "Alice's scarf", 30)
	_, err = CreateSwap(ctx, database, carol.ID, third.ID, model.SwapModeDirect, []int64{carols.ID}, "")
	expectKind(t, err, model.KindInvalidOfferedItems)
}

func TestAcceptTwice(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 500)
	item := mustItem(t, database, admin, alice, "Bucket hat", 100)

	s, _ := CreateSwap(ctx, database, bob.ID, item.ID, model.SwapModePoints, nil, "")
	first, err := AcceptSwap(ctx, database, alice.ID, s.ID)
	if err != nil {
		t.Fatal(err)
	}

	_, err = AcceptSwap(ctx, database, alice.ID, s.ID)
	expectKind(t, err, model.KindInvalidTransition)

	after, _ := GetSwap(ctx, database, s.ID)
	if after.Status != model.SwapAccepted || !after.AcceptedAt.Equal(*first.AcceptedAt) {
		t.Errorf("state changed by failed accept: %+v", after)
	}
}

func TestAcceptNotOwner(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 500)
	item := mustItem(t, database, admin, alice, "Polo shirt", 100)

	s, _ := CreateSwap(ctx, database, bob.ID, item.ID, model.SwapModePoints, nil, "")

	_, err := AcceptSwap(ctx, database, bob.ID, s.ID)
	expectKind(t, err, model.KindNotAuthorized)
	_, err = RejectSwap(ctx, database, bob.ID, s.ID, "")
	expectKind(t, err, model.KindNotAuthorized)
	_, err = AcceptSwap(ctx, database, alice.ID, 999)
	expectKind(t, err, model.KindNotFound)
}

func TestRejectThenAccept(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 500)
	item := mustItem(t, database, admin, alice, "Knit cardigan", 100)

	s, _ := CreateSwap(ctx, database, bob.ID, item.ID, model.SwapModePoints, nil, "")
	rejected, err := RejectSwap(ctx, database, alice.ID, s.ID, "keeping it")
	if err != nil {
		t.Fatalf("RejectSwap: %v", err)
	}
	if rejected.Status != model.SwapRejected || rejected.Reason != "keeping it" || rejected.RejectedAt == nil {
		t.Fatalf("unexpected rejection: %+v", rejected)
	}

	_, err = AcceptSwap(ctx, database, alice.ID, s.ID)
	expectKind(t, err, model.KindInvalidTransition)
	_, err = CancelSwap(ctx, database, bob.ID, s.ID)
	expectKind(t, err, model.KindInvalidTransition)

	// The item is free again.
	if _, err := CreateSwap(ctx, database, bob.ID, item.ID, model.SwapModePoints, nil, ""); err != nil {
		t.Errorf("expected new swap after rejection, got %v", err)
	}
}

func TestRejectAcceptedFails(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 500)
	item := mustItem(t, database, admin, alice, "Track jacket", 100)

	s, _ := CreateSwap(ctx, database, bob.ID, item.ID, model.SwapModePoints, nil, "")
	if _, err := AcceptSwap(ctx, database, alice.ID, s.ID); err != nil {
		t.Fatal(err)
	}
	_, err := RejectSwap(ctx, database, alice.ID, s.ID, "")
	expectKind(t, err, model.KindInvalidTransition)
	if mustGetItem(t, database, item.ID).Available {
		t.Error("failed reject released the reservation")
	}
}

func TestConcurrentAccept(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 500)
	item := mustItem(t, database, admin, alice, "Puffer vest", 100)

	s, err := CreateSwap(ctx, database, bob.ID, item.ID, model.SwapModePoints, nil, "")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = AcceptSwap(ctx, database, alice.ID, s.ID)
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrInvalidTransition):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Errorf("expected one success and one InvalidTransition, got %d and %d", ok, conflicts)
	}
}

func TestAcceptStaleOffer(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 300)
	first := mustItem(t, database, admin, alice, "First dress", 200)
	second := mustItem(t, database, admin, alice, "Second dress", 200)

	s1, err := CreateSwap(ctx, database, bob.ID, first.ID, model.SwapModePoints, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	s2, err := CreateSwap(ctx, database, bob.ID, second.ID, model.SwapModePoints, nil, "")
	if err != nil {
		t.Fatal(err)
	}

	// Settling the first leaves bob with 100 points, short for the second.
	if _, err := AcceptSwap(ctx, database, alice.ID, s1.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := CompleteSwap(ctx, database, s1.ID); err != nil {
		t.Fatal(err)
	}

	got, err := AcceptSwap(ctx, database, alice.ID, s2.ID)
	if err != nil {
		t.Fatalf("expected stale offer to be rejected without error, got %v", err)
	}
	if got.Status != model.SwapRejected || got.Reason != model.ReasonStaleOffer {
		t.Errorf("expected stale rejection, got %+v", got)
	}
	if !mustGetItem(t, database, second.ID).Available {
		t.Error("stale offer reserved the item")
	}
}

func TestAcceptStaleOfferedItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 0)
	wanted := mustItem(t, database, admin, alice, "Wanted parka", 300)
	offered := mustItem(t, database, admin, bob, "Offered beanie", 50)

	s, err := CreateSwap(ctx, database, bob.ID, wanted.ID, model.SwapModeDirect, []int64{offered.ID}, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := RejectItem(ctx, database, admin.ID, offered.ID, "counterfeit"); err != nil {
		t.Fatal(err)
	}

	got, err := AcceptSwap(ctx, database, alice.ID, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.SwapRejected || got.Reason != model.ReasonStaleOffer {
		t.Errorf("expected stale rejection, got %+v", got)
	}
}

func TestCancelReleasesReservation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 0)
	carol := mustUser(t, database, "carol", 0)
	wanted := mustItem(t, database, admin, alice, "Wanted trench", 300)
	offered := mustItem(t, database, admin, bob, "Offered sneakers", 120)

	s, _ := CreateSwap(ctx, database, bob.ID, wanted.ID, model.SwapModeDirect, []int64{offered.ID}, "")
	if _, err := AcceptSwap(ctx, database, alice.ID, s.ID); err != nil {
		t.Fatal(err)
	}

	_, err := CancelSwap(ctx, database, carol.ID, s.ID)
	expectKind(t, err, model.KindNotAuthorized)

	got, err := CancelSwap(ctx, database, alice.ID, s.ID)
	if err != nil {
		t.Fatalf("CancelSwap: %v", err)
	}
	if got.Status != model.SwapCancelled || got.CancelledBy == nil || *got.CancelledBy != alice.ID {
		t.Errorf("unexpected cancellation: %+v", got)
	}
	for _, id := range []int64{wanted.ID, offered.ID} {
		if !mustGetItem(t, database, id).Available {
			t.Errorf("item %d still reserved", id)
		}
	}

	_, err = CompleteSwap(ctx, database, s.ID)
	expectKind(t, err, model.KindInvalidTransition)
}

func TestCompleteRequiresAccepted(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 500)
	item := mustItem(t, database, admin, alice, "Chinos", 100)

	s, _ := CreateSwap(ctx, database, bob.ID, item.ID, model.SwapModePoints, nil, "")
	_, err := CompleteSwap(ctx, database, s.ID)
	expectKind(t, err, model.KindInvalidTransition)
	if mustBalance(t, database, bob.ID) != 500 {
		t.Error("points moved for pending swap")
	}
}

func TestSettlementFailureRollsBack(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 500)
	item := mustItem(t, database, admin, alice, "Blazer", 200)

	s, _ := CreateSwap(ctx, database, bob.ID, item.ID, model.SwapModePoints, nil, "")
	if _, err := AcceptSwap(ctx, database, alice.ID, s.ID); err != nil {
		t.Fatal(err)
	}

	// The balance drops below the value between accept and complete.
	if _, err := database.ExecContext(ctx, `UPDATE users SET points_balance = 50 WHERE id = ?`, bob.ID); err != nil {
		t.Fatal(err)
	}

	_, err := CompleteSwap(ctx, database, s.ID)
	expectKind(t, err, model.KindSettlementFailed)
	if !model.IsRetryable(err) {
		t.Error("expected settlement failure to be retryable")
	}

	got, _ := GetSwap(ctx, database, s.ID)
	if got.Status != model.SwapAccepted {
		t.Errorf("expected swap to stay accepted, got %s", got.Status)
	}
	if mustBalance(t, database, bob.ID) != 50 || mustBalance(t, database, alice.ID) != 0 {
		t.Error("balances changed by failed settlement")
	}
	if it := mustGetItem(t, database, item.ID); it.OwnerID != alice.ID || it.Available {
		t.Errorf("item changed by failed settlement: %+v", it)
	}
}

func TestSettlementBalanceOverflow(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", math.MaxInt64-10)
	bob := mustUser(t, database, "bob", 500)
	item := mustItem(t, database, admin, alice, "Raincoat", 100)

	s, _ := CreateSwap(ctx, database, bob.ID, item.ID, model.SwapModePoints, nil, "")
	if _, err := AcceptSwap(ctx, database, alice.ID, s.ID); err != nil {
		t.Fatal(err)
	}

	_, err := CompleteSwap(ctx, database, s.ID)
	expectKind(t, err, model.KindBalanceOverflow)
	if mustBalance(t, database, bob.ID) != 500 {
		t.Error("debit not rolled back after overflow")
	}
}

func TestAddPoints(t *testing.T) {
	if v, ok := addPoints(1, 2); !ok || v != 3 {
		t.Errorf("addPoints(1, 2) = %d, %v", v, ok)
	}
	if _, ok := addPoints(math.MaxInt64, 1); ok {
		t.Error("expected overflow")
	}
	if v, ok := addPoints(math.MaxInt64-1, 1); !ok || v != math.MaxInt64 {
		t.Errorf("addPoints at the edge = %d, %v", v, ok)
	}
}

func TestListSwaps(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 500)
	bob := mustUser(t, database, "bob", 500)
	alices := mustItem(t, database, admin, alice, "Alice's coat", 100)
	bobs := mustItem(t, database, admin, bob, "Bob's coat", 100)

	sent, _ := CreateSwap(ctx, database, bob.ID, alices.ID, model.SwapModePoints, nil, "")
	received, _ := CreateSwap(ctx, database, alice.ID, bobs.ID, model.SwapModePoints, nil, "")
	if _, err := RejectSwap(ctx, database, alice.ID, sent.ID, ""); err != nil {
		t.Fatal(err)
	}

	all, err := ListSwaps(ctx, database, model.SwapFilter{UserID: bob.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 swaps, got %d", len(all))
	}

	out, _ := ListSwaps(ctx, database, model.SwapFilter{UserID: bob.ID, Direction: "sent"})
	if len(out) != 1 || out[0].ID != sent.ID || out[0].RequestedItemTitle != "Alice's coat" {
		t.Errorf("sent: %+v", out)
	}
	in, _ := ListSwaps(ctx, database, model.SwapFilter{UserID: bob.ID, Direction: "received"})
	if len(in) != 1 || in[0].ID != received.ID {
		t.Errorf("received: %+v", in)
	}
	pending, _ := ListSwaps(ctx, database, model.SwapFilter{UserID: bob.ID, Status: model.SwapPending})
	if len(pending) != 1 || pending[0].ID != received.ID {
		t.Errorf("pending: %+v", pending)
	}

	_, err = ListSwaps(ctx, database, model.SwapFilter{UserID: bob.ID, Direction: "sideways"})
	expectKind(t, err, model.KindInvalid)
}

func TestRateSwap(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 500)
	carol := mustUser(t, database, "carol", 0)
	item := mustItem(t, database, admin, alice, "Corduroy jacket", 100)
	pendingItem := mustItem(t, database, admin, alice, "Corduroy pants", 100)

	pending, _ := CreateSwap(ctx, database, bob.ID, pendingItem.ID, model.SwapModePoints, nil, "")
	_, err := RateSwap(ctx, database, bob.ID, pending.ID, 5)
	expectKind(t, err, model.KindInvalidTransition)

	s := completePointsSwap(t, database, bob, alice, item)

	_, err = RateSwap(ctx, database, bob.ID, s.ID, 6)
	expectKind(t, err, model.KindInvalid)
	_, err = RateSwap(ctx, database, carol.ID, s.ID, 4)
	expectKind(t, err, model.KindNotAuthorized)

	r, err := RateSwap(ctx, database, bob.ID, s.ID, 4)
	if err != nil {
		t.Fatalf("RateSwap: %v", err)
	}
	if r.RateeID != alice.ID {
		t.Errorf("expected ratee alice, got %d", r.RateeID)
	}
	_, err = RateSwap(ctx, database, bob.ID, s.ID, 5)
	expectKind(t, err, model.KindConflict)

	u, _ := GetUser(ctx, database, alice.ID)
	if u.RatingCount != 1 || u.Rating != 4 {
		t.Errorf("unexpected rating aggregate: count %d, avg %v", u.RatingCount, u.Rating)
	}
}
