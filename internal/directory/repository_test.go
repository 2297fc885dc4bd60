package directory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-registry/internal/database/mock"
	"github.com/kozaktomas/face-registry/internal/directory"
	"go.uber.org/zap/zaptest"
)

func aliceGeometry() directory.Geometry {
	return directory.Geometry{
		FaceWidth:  120,
		FaceHeight: 140,
		Eyes:       [2]directory.Point{{X: 30, Y: 40}, {X: 80, Y: 42}},
	}
}

func newRepo(t *testing.T) (*directory.Repository, *mock.MockStore) {
	t.Helper()
	store := mock.NewMockStore()
	return directory.NewRepository(store, zaptest.NewLogger(t)), store
}

func strPtr(s string) *string { return &s }

func TestCreateThenListIncludesRecord(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)

	id, err := repo.Create(ctx, "Alice", "Eng", directory.GeometryDescriptor(aliceGeometry()))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("expected a fresh id")
	}

	records, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var found *directory.UserRecord
	for i := range records {
		if records[i].ID == id {
			found = &records[i]
		}
	}
	if found == nil {
		t.Fatalf("record %s not listed", id)
	}
	g, ok := found.Face.Geometry()
	if !ok || g != aliceGeometry() {
		t.Errorf("descriptor mismatch: %+v", found.Face)
	}
	if found.Name != "Alice" || found.Department != "Eng" {
		t.Errorf("unexpected record %+v", found)
	}
}

func TestCreateAppendsToView(t *testing.T) {
	repo, _ := newRepo(t)
	id, err := repo.Create(context.Background(), "Bob", "Ops", directory.LegacyDescriptor("Zm9v"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	snap := repo.Snapshot()
	if len(snap) != 1 || snap[0].ID != id {
		t.Errorf("expected view to contain new record, got %+v", snap)
	}
}

func TestCreateValidation(t *testing.T) {
	repo, store := newRepo(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		rname      string
		department string
		face       directory.Descriptor
	}{
		{"empty name", "", "Eng", directory.GeometryDescriptor(aliceGeometry())},
		{"empty department", "Alice", "  ", directory.GeometryDescriptor(aliceGeometry())},
		{"missing descriptor", "Alice", "Eng", directory.Descriptor{}},
		{"zero width", "Alice", "Eng", directory.GeometryDescriptor(directory.Geometry{FaceHeight: 10})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Create(ctx, tt.rname, tt.department, tt.face)
			if !errors.Is(err, directory.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
	if store.CreateCalls != 0 {
		t.Errorf("expected no store calls, got %d", store.CreateCalls)
	}
}

func TestListAllRemoteUnavailable(t *testing.T) {
	repo, store := newRepo(t)
	store.ListError = errors.New("connection refused")

	_, err := repo.ListAll(context.Background())
	if !errors.Is(err, directory.ErrRemoteUnavailable) {
		t.Errorf("expected remote unavailable, got %v", err)
	}
}

func TestUpdatePartial(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	id, err := repo.Create(ctx, "Alice", "Eng", directory.GeometryDescriptor(aliceGeometry()))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.Update(ctx, id, directory.Partial{Department: strPtr("Research")}); err != nil {
		t.Fatalf("update: %v", err)
	}

	rec, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Name != "Alice" {
		t.Errorf("name changed unexpectedly: %q", rec.Name)
	}
	if rec.Department != "Research" {
		t.Errorf("department not updated: %q", rec.Department)
	}
	if g, ok := rec.Face.Geometry(); !ok || g != aliceGeometry() {
		t.Errorf("descriptor changed: %+v", rec.Face)
	}

	listed, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if listed[0].Department != "Research" {
		t.Errorf("store not updated: %+v", listed[0])
	}
}

func TestUpdateErrors(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	id, _ := repo.Create(ctx, "Alice", "Eng", directory.GeometryDescriptor(aliceGeometry()))

	if err := repo.Update(ctx, "missing", directory.Partial{Name: strPtr("X")}); !errors.Is(err, directory.ErrNotFound) {
		t.Errorf("unknown id: expected not found, got %v", err)
	}
	if err := repo.Update(ctx, id, directory.Partial{Name: strPtr("")}); !errors.Is(err, directory.ErrValidation) {
		t.Errorf("empty name: expected validation error, got %v", err)
	}
	if err := repo.Update(ctx, id, directory.Partial{}); !errors.Is(err, directory.ErrValidation) {
		t.Errorf("empty partial: expected validation error, got %v", err)
	}
	if err := repo.Update(ctx, "missing", directory.Partial{}); !errors.Is(err, directory.ErrNotFound) {
		t.Errorf("empty partial of unknown id: expected not found, got %v", err)
	}
}

// listGate blocks List until released so a reload can be caught mid-flight.
type listGate struct {
	*mock.MockStore
	listing chan struct{}
	release chan struct{}
}

func (g *listGate) List(ctx context.Context) ([]directory.UserRecord, error) {
	records, err := g.MockStore.List(ctx)
	close(g.listing)
	<-g.release
	return records, err
}

func TestListAllKeepsConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	store := &listGate{MockStore: mock.NewMockStore(), listing: make(chan struct{}), release: make(chan struct{})}
	repo := directory.NewRepository(store, zaptest.NewLogger(t))

	listed := make(chan error)
	go func() {
		_, err := repo.ListAll(ctx)
		listed <- err
	}()
	<-store.listing

	created := make(chan string, 1)
	go func() {
		id, err := repo.Create(ctx, "Alice", "Eng", directory.GeometryDescriptor(aliceGeometry()))
		if err != nil {
			t.Errorf("create: %v", err)
		}
		created <- id
	}()

	// Give the create a chance to land before the reload replaces the view.
	time.Sleep(50 * time.Millisecond)
	close(store.release)

	if err := <-listed; err != nil {
		t.Fatalf("list: %v", err)
	}
	id := <-created

	snapshot := repo.Snapshot()
	if len(snapshot) != 1 || snapshot[0].ID != id {
		t.Errorf("record created during a reload is missing from the view: %+v", snapshot)
	}
}

func TestDeleteTwice(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	id, _ := repo.Create(ctx, "Alice", "Eng", directory.GeometryDescriptor(aliceGeometry()))

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := repo.Delete(ctx, id); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
	if len(repo.Snapshot()) != 0 {
		t.Error("expected record removed from view")
	}
}

func TestDeleteRemoteFailureKeepsView(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo(t)
	id, _ := repo.Create(ctx, "Alice", "Eng", directory.GeometryDescriptor(aliceGeometry()))
	store.DeleteError = errors.New("timeout")

	if err := repo.Delete(ctx, id); !errors.Is(err, directory.ErrRemoteUnavailable) {
		t.Fatalf("expected remote unavailable, got %v", err)
	}
	if len(repo.Snapshot()) != 1 {
		t.Error("record should stay in view when the store failed")
	}
}

func TestConcurrentUpdatesSameRecord(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo(t)
	id, _ := repo.Create(ctx, "Alice", "Eng", directory.GeometryDescriptor(aliceGeometry()))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "Alice"
			if i%2 == 0 {
				name = "Alicia"
			}
			if err := repo.Update(ctx, id, directory.Partial{Name: &name}); err != nil {
				t.Errorf("update %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if store.UpdateCalls != 20 {
		t.Errorf("expected 20 store updates, got %d", store.UpdateCalls)
	}
	rec, _ := repo.Get(ctx, id)
	stored, _ := store.Get(ctx, id)
	if rec.Name != stored.Name {
		t.Errorf("view %q diverged from store %q", rec.Name, stored.Name)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	repo.Create(ctx, "Jiří Novák", "Engineering", directory.LegacyDescriptor("a"))
	repo.Create(ctx, "Alice", "Research", directory.LegacyDescriptor("b"))

	if got := repo.Search("jiri"); len(got) != 1 || got[0].Name != "Jiří Novák" {
		t.Errorf("search by name: %+v", got)
	}
	if got := repo.Search("RESEARCH"); len(got) != 1 || got[0].Name != "Alice" {
		t.Errorf("search by department: %+v", got)
	}
	if got := repo.Search(""); len(got) != 2 {
		t.Errorf("empty query should return all, got %d", len(got))
	}
}

func TestImportCollectsFailures(t *testing.T) {
	repo, _ := newRepo(t)
	records := []directory.UserRecord{
		{Name: "Alice", Department: "Eng", Face: directory.GeometryDescriptor(aliceGeometry())},
		{Name: "", Department: "Eng", Face: directory.LegacyDescriptor("x")},
		{Name: "Bob", Department: "Ops", Face: directory.LegacyDescriptor("y")},
	}

	calls := 0
	res, err := repo.Import(context.Background(), records, func() { calls++ })
	if !errors.Is(err, directory.ErrValidation) {
		t.Errorf("expected joined validation error, got %v", err)
	}
	if len(res.IDs) != 2 || res.Failed != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if calls != 3 {
		t.Errorf("expected 3 progress calls, got %d", calls)
	}
}
