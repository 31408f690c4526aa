package s3client

import (
	"context"
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func TestClient_PutGetStatDelete(t *testing.T) {
	c := TestClient(t, "notes-test", "pocketnotes")
	ctx := context.Background()

	if _, _, err := c.Get(ctx, "notes-storage.json"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrObjectNotFound", err)
	}
	if _, err := c.Stat(ctx, "notes-storage.json"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Stat(missing) error = %v, want ErrObjectNotFound", err)
	}

	etag, err := c.Put(ctx, "notes-storage.json", []byte(`{"version":0}`))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if etag == "" {
		t.Fatal("Put returned an empty ETag")
	}

	got, getTag, err := c.Get(ctx, "notes-storage.json")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"version":0}` {
		t.Fatalf("Get = %q, want %q", got, `{"version":0}`)
	}
	if getTag != etag {
		t.Fatalf("Get ETag = %q, want %q", getTag, etag)
	}

	info, err := c.Stat(ctx, "notes-storage.json")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.ETag != etag || info.Size != int64(len(`{"version":0}`)) {
		t.Fatalf("Stat = %+v, want ETag %q size %d", info, etag, len(`{"version":0}`))
	}

	if err := c.Delete(ctx, "notes-storage.json"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, _, err := c.Get(ctx, "notes-storage.json"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Get after delete error = %v, want ErrObjectNotFound", err)
	}
}

func TestClient_ETagChangesWithContent(t *testing.T) {
	c := TestClient(t, "notes-test", "")
	ctx := context.Background()

	first, err := c.Put(ctx, "rec", []byte("one"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	second, err := c.Put(ctx, "rec", []byte("two"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if first == second {
		t.Fatalf("ETag unchanged after rewrite: %q", first)
	}
}

func TestFake_SharedBucketIsolatedByPrefix(t *testing.T) {
	fake := NewFake(t)
	a := fake.Client(t, "shared", "a")
	b := fake.Client(t, "shared", "b")
	ctx := context.Background()

	if _, err := a.Put(ctx, "rec", []byte("A")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if a.Key("rec") != "a/rec" {
		t.Fatalf("Key(rec) = %q, want %q", a.Key("rec"), "a/rec")
	}
	if _, _, err := b.Get(ctx, "rec"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("prefix b saw prefix a's object: %v", err)
	}

	again := fake.Client(t, "shared", "a")
	data, _, err := again.Get(ctx, "rec")
	if err != nil || string(data) != "A" {
		t.Fatalf("second client Get = %q, %v", data, err)
	}
}

func TestNormalizePrefix_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.StringMatching(`/{0,2}[a-z]{0,8}(/[a-z]{1,8}){0,2}/{0,2}`).Draw(t, "raw")
		p := normalizePrefix(raw)

		if p == "" {
			return
		}
		// Property: non-empty prefixes end in exactly one slash and never start with one
		if p[0] == '/' || p[len(p)-1] != '/' || (len(p) > 1 && p[len(p)-2] == '/') {
			t.Fatalf("normalizePrefix(%q) = %q", raw, p)
		}
	})
}
