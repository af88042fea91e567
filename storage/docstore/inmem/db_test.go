package inmemdocs

import (
	"context"
	"errors"
	"testing"

	"github.com/trezcool/darasa/core"
)

func TestGetSetDocument(t *testing.T) {
	ctx := context.Background()
	db := Open()

	if _, err := db.GetDocument(ctx, "courses", "c1"); err != core.ErrDocNotFound {
		t.Fatalf("GetDocument() on empty db = %v, want %v", err, core.ErrDocNotFound)
	}

	if err := db.SetDocument(ctx, "courses", "c1", map[string]interface{}{"title": "Go", "price": 10}, false); err != nil {
		t.Fatal(err)
	}
	doc, err := db.GetDocument(ctx, "courses", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Str("title") != "Go" {
		t.Errorf("title = %q, want Go", doc.Str("title"))
	}
}

func TestSetDocumentMerge(t *testing.T) {
	ctx := context.Background()
	db := Open()
	db.Put("courses", "c1", map[string]interface{}{"title": "Go", "price": 10})

	if err := db.SetDocument(ctx, "courses", "c1", map[string]interface{}{"price": 20}, true); err != nil {
		t.Fatal(err)
	}
	doc, _ := db.GetDocument(ctx, "courses", "c1")
	if doc.Str("title") != "Go" {
		t.Error("merge dropped an untouched field")
	}
	if doc.Int("price") != 20 {
		t.Errorf("price = %d, want 20", doc.Int("price"))
	}

	// a replace drops untouched fields
	if err := db.SetDocument(ctx, "courses", "c1", map[string]interface{}{"price": 30}, false); err != nil {
		t.Fatal(err)
	}
	doc, _ = db.GetDocument(ctx, "courses", "c1")
	if doc.Str("title") != "" {
		t.Error("replace kept a stale field")
	}
}

func TestQueryCollection(t *testing.T) {
	ctx := context.Background()
	db := Open()
	db.Put("lessons", "l1", map[string]interface{}{"order": 2, "kind": "video"})
	db.Put("lessons", "l2", map[string]interface{}{"order": 1, "kind": "text"})
	db.Put("lessons", "l3", map[string]interface{}{"order": 3, "kind": "video"})

	t.Run("ordered ascending", func(t *testing.T) {
		docs, err := db.QueryCollection(ctx, "lessons", nil, core.OrderBy("order", true))
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 3 || docs[0].ID != "l2" || docs[2].ID != "l3" {
			t.Errorf("order = %v", ids(docs))
		}
	})
	t.Run("filtered", func(t *testing.T) {
		docs, err := db.QueryCollection(ctx, "lessons", []core.Filter{core.Where("kind", "==", "video")})
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 2 {
			t.Errorf("got %d docs, want 2", len(docs))
		}
	})
	t.Run("range filter", func(t *testing.T) {
		docs, err := db.QueryCollection(ctx, "lessons", []core.Filter{core.Where("order", ">=", 2)})
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 2 {
			t.Errorf("got %d docs, want 2", len(docs))
		}
	})
	t.Run("empty collection", func(t *testing.T) {
		docs, err := db.QueryCollection(ctx, "nothing", nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 0 {
			t.Errorf("got %d docs, want 0", len(docs))
		}
	})
}

func TestAccessInjection(t *testing.T) {
	ctx := context.Background()
	db := Open()
	db.Put("private", "p1", map[string]interface{}{"secret": true})

	db.Deny("private")
	if _, err := db.GetDocument(ctx, "private", "p1"); err != core.ErrPermissionDenied {
		t.Fatalf("GetDocument() on denied path = %v, want %v", err, core.ErrPermissionDenied)
	}
	db.Allow("private")
	if _, err := db.GetDocument(ctx, "private", "p1"); err != nil {
		t.Fatalf("GetDocument() after Allow = %v", err)
	}

	boom := errors.New("socket closed")
	db.Fail("private", boom)
	if _, err := db.QueryCollection(ctx, "private", nil); err != boom {
		t.Fatalf("QueryCollection() on failing path = %v, want %v", err, boom)
	}
	db.ClearFault("private")
	if _, err := db.QueryCollection(ctx, "private", nil); err != nil {
		t.Fatalf("QueryCollection() after ClearFault = %v", err)
	}
}

func TestDocumentIsolation(t *testing.T) {
	ctx := context.Background()
	db := Open()
	db.Put("courses", "c1", map[string]interface{}{"title": "Go"})

	doc, _ := db.GetDocument(ctx, "courses", "c1")
	doc.Fields["title"] = "mutated"

	again, _ := db.GetDocument(ctx, "courses", "c1")
	if again.Str("title") != "Go" {
		t.Error("mutating a returned document leaked into the store")
	}
}

func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	db := Open()
	db.Put("courses", "c1", map[string]interface{}{"title": "Go"})

	if err := db.DeleteDocument(ctx, "courses", "c1"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteDocument(ctx, "courses", "c1"); err != core.ErrDocNotFound {
		t.Fatalf("second delete = %v, want %v", err, core.ErrDocNotFound)
	}
}

func ids(docs []core.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
