package keymaster

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wisbric/keymaster/pkg/credential"
)

func newTestService(t *testing.T) (*Service, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewStore(client)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, logger), store
}

func TestCreateProject(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, kmErr := svc.CreateProject(ctx, "p1", "Project One", "alice")
	if kmErr != nil {
		t.Fatalf("CreateProject() error = %v", kmErr)
	}
	if doc.ProjectID != "p1" {
		t.Errorf("ProjectID = %q, want p1", doc.ProjectID)
	}

	_, kmErr = svc.CreateProject(ctx, "p1", "Project One Again", "bob")
	if kmErr == nil || kmErr.Kind != ErrProjectExists {
		t.Fatalf("second CreateProject() error = %v, want ErrProjectExists", kmErr)
	}

	got, kmErr := svc.GetProject(ctx, "p1")
	if kmErr != nil {
		t.Fatalf("GetProject() error = %v", kmErr)
	}
	if got.Owner != "alice" {
		t.Errorf("Owner = %q, want alice (unchanged by failed second create)", got.Owner)
	}
}

func TestGetProjectNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, kmErr := svc.GetProject(context.Background(), "nope")
	if kmErr == nil || kmErr.Kind != ErrProjectNotFound {
		t.Fatalf("GetProject() error = %v, want ErrProjectNotFound", kmErr)
	}
}

var wireFormRE = regexp.MustCompile(`^sk-proj\.p1\.k_[A-Za-z0-9]{7}\.[A-Za-z0-9_\-]{32}$`)

func TestMintKey(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	wire, kmErr := svc.MintKey(ctx, "p1", "alice", "srv-a", nil)
	if kmErr != nil {
		t.Fatalf("MintKey() error = %v", kmErr)
	}
	if !wireFormRE.MatchString(wire) {
		t.Errorf("MintKey() = %q, does not match expected wire format", wire)
	}

	engine := NewEngine(store, discardLogger(), 100)
	doc, kmErr := engine.Validate(ctx, wire)
	if kmErr != nil {
		t.Fatalf("Validate() newly minted key error = %v", kmErr)
	}
	if doc.Owner != "alice" || doc.Metadata != "srv-a" {
		t.Errorf("Validate() doc = %+v", doc)
	}
}

func TestRevokeKey(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	wire, kmErr := svc.MintKey(ctx, "p1", "alice", "srv-a", nil)
	if kmErr != nil {
		t.Fatalf("MintKey() error = %v", kmErr)
	}
	parsed, err := credential.Parse(wire)
	if err != nil {
		t.Fatalf("credential.Parse() error = %v", err)
	}

	if kmErr := svc.RevokeKey(ctx, parsed.ProjectID, parsed.KeyID); kmErr != nil {
		t.Fatalf("RevokeKey() error = %v", kmErr)
	}
	// Idempotent.
	if kmErr := svc.RevokeKey(ctx, parsed.ProjectID, parsed.KeyID); kmErr != nil {
		t.Fatalf("RevokeKey() on already-revoked key error = %v", kmErr)
	}

	if kmErr := svc.RevokeKey(ctx, parsed.ProjectID, "nonexistent"); kmErr == nil || kmErr.Kind != ErrKeyNotFound {
		t.Fatalf("RevokeKey() on missing key error = %v, want ErrKeyNotFound", kmErr)
	}
}

func TestListKeysPagination(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, kmErr := svc.MintKey(ctx, "p1", "alice", "srv-a", nil); kmErr != nil {
			t.Fatalf("MintKey() error = %v", kmErr)
		}
	}

	page1, next1, kmErr := svc.ListKeys(ctx, "p1", 0, 3)
	if kmErr != nil {
		t.Fatalf("ListKeys() error = %v", kmErr)
	}
	if len(page1) != 3 || next1 == nil || *next1 != "3" {
		t.Fatalf("page1 = %d items, next = %v, want 3 items and next=3", len(page1), next1)
	}
	page2, next2, kmErr := svc.ListKeys(ctx, "p1", 3, 3)
	if kmErr != nil {
		t.Fatalf("ListKeys() error = %v", kmErr)
	}
	if len(page2) != 2 || next2 != nil {
		t.Fatalf("page2 = %d items, next = %v, want 2 items and next=nil", len(page2), next2)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
