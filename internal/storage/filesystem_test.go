package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFileStoreWriteReadRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "renders/team-1/2026/09/01/abc.jpg", []byte("payload"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("Read = %q, want payload", got)
	}
}

func TestFileStoreWriteOnce(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Write(ctx, "a/b.jpg", []byte("one")); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if _, err := store.Write(ctx, "a/b.jpg", []byte("two")); !errors.Is(err, ErrKeyExists) {
		t.Fatalf("second Write err = %v, want ErrKeyExists", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Write(context.Background(), "../escape.jpg", []byte("x")); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
}

func TestObjectKeyShape(t *testing.T) {
	now := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
	key := ObjectKey("renders", "team-42", "jpg", now)

	if !strings.HasPrefix(key, "renders/team-42/2026/09/01/") {
		t.Fatalf("key prefix wrong: %s", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("key suffix wrong: %s", key)
	}
	if key == ObjectKey("renders", "team-42", "jpg", now) {
		t.Fatal("two keys for the same instant collided")
	}
}
