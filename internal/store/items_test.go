package store

import (
	"context"
	"math"
	"testing"

	"github.com/rewear/rewear/internal/db"
	"github.com/rewear/rewear/internal/model"
)

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice", 0)

	in := itemInput("Denim jacket", 200)
	in.Brand = "Levi's"
	in.Images = []string{"/images/a", "/images/b"}
	item, err := CreateItem(ctx, database, alice.ID, in)
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.Moderation.Status != model.ModerationPending {
		t.Errorf("expected pending moderation, got %q", item.Moderation.Status)
	}
	if !item.Available {
		t.Error("expected new item to be available")
	}
	if item.OwnerName != "alice" || item.Brand != "Levi's" {
		t.Errorf("unexpected item: %+v", item)
	}
	if len(item.Images) != 2 || item.Images[0] != "/images/a" || item.Images[1] != "/images/b" {
		t.Errorf("unexpected images: %v", item.Images)
	}

	if _, err := GetItem(ctx, database, 999); err == nil {
		t.Error("expected not found")
	} else {
		expectKind(t, err, model.KindNotFound)
	}
}

func TestCreateItemValidation(t *testing.T) {
	database := db.NewTestDB(t)
	alice := mustUser(t, database, "alice", 0)

	in := itemInput("Denim jacket", 0)
	_, err := CreateItem(context.Background(), database, alice.ID, in)
	expectKind(t, err, model.KindInvalid)
}

func TestListCatalogOnlyApproved(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)

	visible := mustItem(t, database, admin, alice, "Visible shirt", 100)
	mustPendingItem(t, database, alice, "Pending shirt", 100)
	rejected := mustPendingItem(t, database, alice, "Rejected shirt", 100)
	if _, err := RejectItem(ctx, database, admin.ID, rejected.ID, "blurry photos"); err != nil {
		t.Fatalf("RejectItem: %v", err)
	}

	page, err := ListCatalog(ctx, database, model.ItemFilter{})
	if err != nil {
		t.Fatalf("ListCatalog: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != visible.ID {
		t.Fatalf("expected only the approved item, got %+v", page)
	}
	if len(page.Items[0].Images) != 1 {
		t.Errorf("expected images to be loaded, got %v", page.Items[0].Images)
	}
}

func TestListCatalogFiltersAndPaging(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)

	for i := 1; i <= 5; i++ {
		mustItem(t, database, admin, alice, title(i), int64(i*100))
	}
	in := itemInput("Red summer dress", 50)
	in.Category = model.CategoryDresses
	dress, err := CreateItem(ctx, database, alice.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ApproveItem(ctx, database, admin.ID, dress.ID); err != nil {
		t.Fatal(err)
	}

	page, err := ListCatalog(ctx, database, model.ItemFilter{Category: model.CategoryDresses})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].ID != dress.ID {
		t.Errorf("category filter: got %+v", page)
	}

	page, err = ListCatalog(ctx, database, model.ItemFilter{Search: "summer"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Errorf("search: expected 1, got %d", page.Total)
	}

	page, err = ListCatalog(ctx, database, model.ItemFilter{MinPoints: 200, MaxPoints: 400})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 {
		t.Errorf("points range: expected 3, got %d", page.Total)
	}

	page, err = ListCatalog(ctx, database, model.ItemFilter{
		SortBy: "points_value", SortOrder: "desc", Limit: 2, Page: 2,
		Category: model.CategoryTops,
	})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 5 || len(page.Items) != 2 {
		t.Fatalf("paging: got total %d, %d items", page.Total, len(page.Items))
	}
	if page.Items[0].PointsValue != 300 || page.Items[1].PointsValue != 200 {
		t.Errorf("paging order: got %d, %d", page.Items[0].PointsValue, page.Items[1].PointsValue)
	}
}

func TestUpdateItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 0)
	item := mustItem(t, database, admin, alice, "Wool sweater", 150)

	in := itemInput("Wool sweater, navy", 180)
	if _, err := UpdateItem(ctx, database, bob.ID, item.ID, in); err == nil {
		t.Fatal("expected non-owner update to fail")
	} else {
		expectKind(t, err, model.KindNotAuthorized)
	}

	updated, err := UpdateItem(ctx, database, alice.ID, item.ID, in)
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if updated.Title != "Wool sweater, navy" || updated.PointsValue != 180 {
		t.Errorf("unexpected update: %+v", updated)
	}
	if updated.Moderation.Status != model.ModerationPending {
		t.Errorf("expected edit to return listing to moderation, got %q", updated.Moderation.Status)
	}
}

func TestItemWithActiveSwapIsLocked(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 500)
	item := mustItem(t, database, admin, alice, "Silk scarf", 100)

	if _, err := CreateSwap(ctx, database, bob.ID, item.ID, model.SwapModePoints, nil, ""); err != nil {
		t.Fatalf("CreateSwap: %v", err)
	}

	_, err := UpdateItem(ctx, database, alice.ID, item.ID, itemInput("Silk scarf", 120))
	expectKind(t, err, model.KindItemHasActiveSwap)

	err = DeleteOwnItem(ctx, database, alice.ID, item.ID)
	expectKind(t, err, model.KindItemHasActiveSwap)
}

func TestDeleteOwnItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 0)
	item := mustItem(t, database, admin, alice, "Old boots", 80)

	expectKind(t, DeleteOwnItem(ctx, database, bob.ID, item.ID), model.KindNotAuthorized)

	if err := DeleteOwnItem(ctx, database, alice.ID, item.ID); err != nil {
		t.Fatalf("DeleteOwnItem: %v", err)
	}

	page, err := ListCatalog(ctx, database, model.ItemFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 0 {
		t.Errorf("expected deleted item hidden, got %d", page.Total)
	}

	// Still fetchable by ID for history.
	got := mustGetItem(t, database, item.ID)
	if got.DeletedAt == nil {
		t.Error("expected DeletedAt to be set")
	}

	expectKind(t, DeleteOwnItem(ctx, database, alice.ID, item.ID), model.KindNotFound)
}

func TestListOwnerItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 0)

	mustItem(t, database, admin, alice, "Approved tee", 50)
	mustPendingItem(t, database, alice, "Pending tee", 50)
	mustPendingItem(t, database, bob, "Bob's tee", 50)

	items, err := ListOwnerItems(ctx, database, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items for alice, got %d", len(items))
	}
}

func TestListCatalogHugePage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	mustItem(t, database, admin, alice, "Only item", 10)

	page, err := ListCatalog(ctx, database, model.ItemFilter{Page: math.MaxInt64/50 + 3, Limit: 100})
	if err != nil {
		t.Fatalf("ListCatalog: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 0 {
		t.Errorf("expected an empty far page, got total %d, %d items", page.Total, len(page.Items))
	}
	if offset := int64(page.Page-1) * int64(page.Limit); offset < 0 || offset > math.MaxInt32 {
		t.Errorf("page %d gives offset %d", page.Page, offset)
	}
}

func TestToggleLike(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 0)
	carol := mustUser(t, database, "carol", 0)
	item := mustItem(t, database, admin, alice, "Liked coat", 100)

	liked, likes, err := ToggleLike(ctx, database, bob.ID, item.ID)
	if err != nil || !liked || likes != 1 {
		t.Fatalf("first toggle: liked %v, likes %d, err %v", liked, likes, err)
	}
	if liked, likes, _ = ToggleLike(ctx, database, carol.ID, item.ID); !liked || likes != 2 {
		t.Errorf("second user: liked %v, likes %d", liked, likes)
	}
	if liked, likes, _ = ToggleLike(ctx, database, bob.ID, item.ID); liked || likes != 1 {
		t.Errorf("toggle back: liked %v, likes %d", liked, likes)
	}
	// Toggling twice returns to the same state.
	ToggleLike(ctx, database, bob.ID, item.ID)
	if liked, likes, _ = ToggleLike(ctx, database, bob.ID, item.ID); liked || likes != 1 {
		t.Errorf("double toggle: liked %v, likes %d", liked, likes)
	}

	got, err := GetItemForViewer(ctx, database, item.ID, carol.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsLiked || got.Likes != 1 {
		t.Errorf("carol view: liked %v, likes %d", got.IsLiked, got.Likes)
	}
	if got, _ = GetItemForViewer(ctx, database, item.ID, bob.ID); got.IsLiked {
		t.Error("bob should no longer like the item")
	}

	pending := mustPendingItem(t, database, alice, "Pending coat", 10)
	_, _, err = ToggleLike(ctx, database, bob.ID, pending.ID)
	expectKind(t, err, model.KindNotFound)
}

func TestRecordView(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 0)
	item := mustItem(t, database, admin, alice, "Viewed coat", 100)

	if counted, err := RecordView(ctx, database, item.ID, alice.ID); err != nil || counted {
		t.Errorf("owner view: counted %v, err %v", counted, err)
	}
	for i := 0; i < 3; i++ {
		if counted, err := RecordView(ctx, database, item.ID, bob.ID); err != nil || !counted {
			t.Fatalf("view %d: counted %v, err %v", i, counted, err)
		}
	}
	if got := mustGetItem(t, database, item.ID); got.Views != 3 {
		t.Errorf("expected 3 views, got %d", got.Views)
	}
}

func TestGetItemForViewerOwnerSummary(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := mustAdmin(t, database)
	alice := mustUser(t, database, "alice", 0)
	bob := mustUser(t, database, "bob", 0)
	item := mustItem(t, database, admin, alice, "Summary coat", 100)
	mustItem(t, database, admin, alice, "Summary hat", 20)
	mustPendingItem(t, database, alice, "Summary scarf", 20)

	got, err := GetItemForViewer(ctx, database, item.ID, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Owner == nil || got.Owner.ID != alice.ID || got.Owner.Username != "alice" {
		t.Fatalf("unexpected owner summary: %+v", got.Owner)
	}
	if got.Owner.ItemsCount != 2 {
		t.Errorf("expected 2 public items, got %d", got.Owner.ItemsCount)
	}
}
