package database

import (
	"context"
	"errors"
	"testing"

	"media-curator/internal/mediatypes"
)

func sampleMedia(path, parent string) *Media {
	return &Media{
		Path:         path,
		Name:         path[len(parent)+1:],
		ParentPath:   parent,
		Size:         1234,
		LastModified: 1700000000000,
		DateTaken:    1690000000000,
		Type:         mediatypes.TypeImage,
	}
}

func TestUpsertMediaDerivesState(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, _ := setupTestDB(t)
	ctx := context.Background()

	active := sampleMedia("/p/a.jpg", "/p")
	active.State = StateTrashed // ignored, derived from the key
	if err := db.UpsertMedia(ctx, active); err != nil {
		t.Fatal(err)
	}
	trashed := sampleMedia("/p/b.jpg", "/p")
	trashed.Path = "recycle_bin/p/b.jpg"
	if err := db.UpsertMedia(ctx, trashed); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetMedia(ctx, "/p/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != StateActive || got.IsTrashed() {
		t.Errorf("state of /p/a.jpg = %q", got.State)
	}

	bin, err := db.GetTrashedMedia(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(bin) != 1 || bin[0].Path != "recycle_bin/p/b.jpg" || !bin[0].IsTrashed() {
		t.Errorf("GetTrashedMedia = %+v", bin)
	}
}

func TestMediaPathCaseInsensitive(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, _ := setupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertMedia(ctx, sampleMedia("/P/IMG.JPG", "/P")); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMedia(ctx, sampleMedia("/p/img.jpg", "/p")); err != nil {
		t.Fatal(err)
	}

	items, err := db.GetMediaInDirectory(ctx, "/p")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d rows, want 1", len(items))
	}
}

func TestGetMediaNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, _ := setupTestDB(t)
	if _, err := db.GetMedia(context.Background(), "/nope.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMedia = %v, want ErrNotFound", err)
	}
}

func TestUpdateDeletedFlagRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, _ := setupTestDB(t)
	ctx := context.Background()

	m := sampleMedia("/p/a.jpg", "/p")
	m.Favorite = true
	if err := db.UpsertMedia(ctx, m); err != nil {
		t.Fatal(err)
	}

	n, err := db.UpdateDeletedFlag(ctx, "recycle_bin/p/a.jpg", 42, "/p/a.jpg")
	if err != nil || n != 1 {
		t.Fatalf("trash UpdateDeletedFlag = (%d, %v)", n, err)
	}
	if _, err := db.GetMedia(ctx, "/p/a.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("original key still present: %v", err)
	}
	trashed, err := db.GetMedia(ctx, "recycle_bin/p/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if trashed.State != StateTrashed || trashed.DeletedTimestamp != 42 || !trashed.Favorite {
		t.Errorf("trashed row = %+v", trashed)
	}

	n, err = db.UpdateDeletedFlag(ctx, "/p/a.jpg", 0, "recycle_bin/p/a.jpg")
	if err != nil || n != 1 {
		t.Fatalf("restore UpdateDeletedFlag = (%d, %v)", n, err)
	}
	restored, err := db.GetMedia(ctx, "/p/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if restored.State != StateActive || restored.DeletedTimestamp != 0 || restored.Size != m.Size {
		t.Errorf("restored row = %+v", restored)
	}
}

func TestUpdateDeletedFlagMissingRow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, _ := setupTestDB(t)
	n, err := db.UpdateDeletedFlag(context.Background(), "recycle_bin/x", 1, "/x")
	if err != nil || n != 0 {
		t.Errorf("UpdateDeletedFlag on missing row = (%d, %v), want (0, nil)", n, err)
	}
}

func TestUpdateMediaPath(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, _ := setupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertMedia(ctx, sampleMedia("/a/x.jpg", "/a")); err != nil {
		t.Fatal(err)
	}
	n, err := db.UpdateMediaPath(ctx, "/a/x.jpg", "/b/y.jpg")
	if err != nil || n != 1 {
		t.Fatalf("UpdateMediaPath = (%d, %v)", n, err)
	}

	got, err := db.GetMedia(ctx, "/b/y.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "y.jpg" || got.ParentPath != "/b" {
		t.Errorf("moved row = %+v", got)
	}
}

func TestRenameMediaTree(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, _ := setupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertMediaBatch(ctx, []Media{
		*sampleMedia("/a/1.jpg", "/a"),
		*sampleMedia("/a/sub/2.jpg", "/a/sub"),
		*sampleMedia("/ab/3.jpg", "/ab"),
	}); err != nil {
		t.Fatal(err)
	}

	n, err := db.RenameMediaTree(ctx, "/a", "/b")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("rows affected = %d, want 2", n)
	}

	for path, parent := range map[string]string{"/b/1.jpg": "/b", "/b/sub/2.jpg": "/b/sub", "/ab/3.jpg": "/ab"} {
		got, err := db.GetMedia(ctx, path)
		if err != nil {
			t.Errorf("GetMedia(%q): %v", path, err)
			continue
		}
		if got.ParentPath != parent {
			t.Errorf("%s parent = %q, want %q", path, got.ParentPath, parent)
		}
	}
}

func TestRenameMediaTreeNonASCII(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, _ := setupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertMediaBatch(ctx, []Media{
		*sampleMedia("/Fotos/Über/a.jpg", "/Fotos/Über"),
		*sampleMedia("/Fotos/Über/ñ/b.jpg", "/Fotos/Über/ñ"),
	}); err != nil {
		t.Fatal(err)
	}

	n, err := db.RenameMediaTree(ctx, "/Fotos/Über", "/Fotos/Reise")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("rows affected = %d, want 2", n)
	}

	for path, parent := range map[string]string{"/Fotos/Reise/a.jpg": "/Fotos/Reise", "/Fotos/Reise/ñ/b.jpg": "/Fotos/Reise/ñ"} {
		got, err := db.GetMedia(ctx, path)
		if err != nil {
			t.Errorf("GetMedia(%q): %v", path, err)
			continue
		}
		if got.ParentPath != parent {
			t.Errorf("%s parent = %q, want %q", path, got.ParentPath, parent)
		}
	}
}

func TestUpdateFavoriteDateTakenIgnoresFavoriteFlag(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, _ := setupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertMedia(ctx, sampleMedia("/p/a.jpg", "/p")); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateFavoriteDateTaken(ctx, "/p/a.jpg", 7); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateLastModified(ctx, "/p/a.jpg", 8); err != nil {
		t.Fatal(err)
	}
	if err := db.SetFavorite(ctx, "/p/a.jpg", true); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetMedia(ctx, "/p/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if got.DateTaken != 7 || got.LastModified != 8 || !got.Favorite {
		t.Errorf("row = %+v", got)
	}
}

func TestClearRecycleBin(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, _ := setupTestDB(t)
	ctx := context.Background()

	keep := sampleMedia("/p/keep.jpg", "/p")
	gone := sampleMedia("/p/gone.jpg", "/p")
	gone.Path = "recycle_bin/p/gone.jpg"
	if err := db.UpsertMediaBatch(ctx, []Media{*keep, *gone}); err != nil {
		t.Fatal(err)
	}

	n, err := db.ClearRecycleBin(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ClearRecycleBin = (%d, %v)", n, err)
	}
	if _, err := db.GetMedia(ctx, "/p/keep.jpg"); err != nil {
		t.Errorf("active row removed: %v", err)
	}
	if bin, _ := db.GetTrashedMedia(ctx); len(bin) != 0 {
		t.Errorf("trashed rows remain: %+v", bin)
	}
}

func TestClearRecycleBinNonASCIIPrefix(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, _ := setupTestDB(t, &Options{TrashPrefix: "papierkörbe"})
	ctx := context.Background()

	gone := sampleMedia("/p/gone.jpg", "/p")
	gone.Path = "papierkörbe/p/gone.jpg"
	if err := db.UpsertMediaBatch(ctx, []Media{*sampleMedia("/p/keep.jpg", "/p"), *gone}); err != nil {
		t.Fatal(err)
	}

	n, err := db.ClearRecycleBin(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ClearRecycleBin = (%d, %v)", n, err)
	}
	if _, err := db.GetMedia(ctx, "/p/keep.jpg"); err != nil {
		t.Errorf("active row removed: %v", err)
	}
}

func TestDeleteMedia(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, _ := setupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertMedia(ctx, sampleMedia("/p/a.jpg", "/p")); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteMedia(ctx, "/p/a.jpg"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteMedia(ctx, "/p/a.jpg"); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if _, err := db.GetMedia(ctx, "/p/a.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMedia after delete: %v", err)
	}
}

func TestGetAllMediaAndDeleteMediaBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, _ := setupTestDB(t)
	ctx := context.Background()

	trashed := sampleMedia("/p/c.jpg", "/p")
	trashed.Path = "recycle_bin/p/c.jpg"
	for _, m := range []*Media{sampleMedia("/p/a.jpg", "/p"), sampleMedia("/p/b.jpg", "/p"), trashed} {
		if err := db.UpsertMedia(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	all, err := db.GetAllMedia(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("GetAllMedia() returned %d rows, want 3", len(all))
	}

	n, err := db.DeleteMediaBatch(ctx, []string{"/P/A.JPG", "recycle_bin/p/c.jpg", "/p/missing.jpg"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("DeleteMediaBatch() = %d, want 2", n)
	}

	all, err = db.GetAllMedia(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Path != "/p/b.jpg" {
		t.Errorf("remaining rows = %+v, want only /p/b.jpg", all)
	}

	if n, err := db.DeleteMediaBatch(ctx, nil); err != nil || n != 0 {
		t.Errorf("DeleteMediaBatch(nil) = (%d, %v)", n, err)
	}
}
