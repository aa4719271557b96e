package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/mangos/mangos/internal/metrics"
	"github.com/mangos/mangos/internal/model"
	"github.com/mangos/mangos/internal/serializer"
	"github.com/mangos/mangos/internal/testutil/fakes"
)

const (
	alice = "01HZALICE0000000000000000A"
	bob   = "01HZBOB000000000000000000B"
)

type mangoTestEnv struct {
	svc      *MangoService
	store    *fakes.Store
	recorder *metrics.InMemoryRecorder
}

func newMangoTestEnv(t *testing.T) *mangoTestEnv {
	t.Helper()
	env := &mangoTestEnv{
		store:    fakes.NewStore(),
		recorder: metrics.NewInMemory(),
	}
	env.svc = NewMangoService(env.store, env.recorder, discardLogger())
	return env
}

func (e *mangoTestEnv) seed(t *testing.T, owner, name string) *model.Mango {
	t.Helper()
	m := &model.Mango{Name: name, Ripe: true, Color: "green", OwnerID: owner}
	if err := e.store.CreateMango(context.Background(), m); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return m
}

func validationFields(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *serializer.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *serializer.ValidationError, got %v", err)
	}
	return verr.Fields
}

func TestMangoService_CreateForcesOwner(t *testing.T) {
	env := newMangoTestEnv(t)

	raw := json.RawMessage(`{"name":"Larry","ripe":true,"color":"green","owner":"` + bob + `","id":99}`)
	m, err := env.svc.CreateMango(context.Background(), alice, raw)
	if err != nil {
		t.Fatalf("CreateMango failed: %v", err)
	}

	if m.OwnerID != alice {
		t.Errorf("owner = %q, want caller %q", m.OwnerID, alice)
	}
	if m.ID != 1 {
		t.Errorf("id = %d, want store-assigned 1", m.ID)
	}
	if m.Name != "Larry" || !m.Ripe || m.Color != "green" {
		t.Errorf("unexpected fields: %+v", m)
	}
	if got := env.recorder.Snapshot().MangosCreated; got != 1 {
		t.Errorf("MangosCreated = %d, want 1", got)
	}
}

func TestMangoService_CreateReportsEveryMissingField(t *testing.T) {
	env := newMangoTestEnv(t)

	_, err := env.svc.CreateMango(context.Background(), alice, json.RawMessage(`{}`))
	fields := validationFields(t, err)

	for _, name := range []string{"name", "ripe", "color"} {
		msgs := fields[name]
		if len(msgs) != 1 || msgs[0] != serializer.MsgRequired {
			t.Errorf("%s errors = %v, want [%q]", name, msgs, serializer.MsgRequired)
		}
	}
	if env.store.MangoCount() != 0 {
		t.Error("nothing should be stored on validation failure")
	}
	if got := env.recorder.Snapshot().ValidationFailed; got != 1 {
		t.Errorf("ValidationFailed = %d, want 1", got)
	}
}

func TestMangoService_CreateWithoutCaller(t *testing.T) {
	env := newMangoTestEnv(t)

	_, err := env.svc.CreateMango(context.Background(), "", json.RawMessage(`{"name":"a","ripe":true,"color":"b"}`))
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestMangoService_CreateForVanishedUser(t *testing.T) {
	env := newMangoTestEnv(t)
	env.store.Owners = map[string]bool{bob: true}

	_, err := env.svc.CreateMango(context.Background(), alice, json.RawMessage(`{"name":"a","ripe":true,"color":"b"}`))
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestMangoService_ListIsOwnerScoped(t *testing.T) {
	env := newMangoTestEnv(t)
	ctx := context.Background()

	first := env.seed(t, alice, "one")
	env.seed(t, bob, "theirs")
	second := env.seed(t, alice, "two")

	got, err := env.svc.ListMangos(ctx, alice)
	if err != nil {
		t.Fatalf("ListMangos failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Fatalf("unexpected list: %+v", got)
	}

	empty, err := env.svc.ListMangos(ctx, "01HZCAROL00000000000000000")
	if err != nil {
		t.Fatalf("ListMangos failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", empty)
	}
}

func TestMangoService_Get(t *testing.T) {
	env := newMangoTestEnv(t)
	m := env.seed(t, alice, "Larry")

	tests := []struct {
		name    string
		caller  string
		id      int64
		wantErr error
	}{
		{"owner", alice, m.ID, nil},
		{"other user", bob, m.ID, ErrPermissionDenied},
		{"missing", alice, 999, ErrMangoNotFound},
		{"zero id", alice, 0, ErrMangoNotFound},
		{"negative id", alice, -3, ErrMangoNotFound},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := env.svc.GetMango(context.Background(), test.caller, test.id)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
			if test.wantErr == nil && got.Name != "Larry" {
				t.Errorf("name = %q, want Larry", got.Name)
			}
			if test.wantErr != nil && got != nil {
				t.Error("no record may be returned on error")
			}
		})
	}

	if got := env.recorder.Snapshot().AccessDenied; got != 1 {
		t.Errorf("AccessDenied = %d, want 1", got)
	}
}

func TestMangoService_GetRecordsLookupDuration(t *testing.T) {
	env := newMangoTestEnv(t)
	ctx := context.Background()
	m := env.seed(t, alice, "Larry")

	if _, err := env.svc.GetMango(ctx, alice, m.ID); err != nil {
		t.Fatalf("GetMango failed: %v", err)
	}
	if _, err := env.svc.GetMango(ctx, bob, m.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if _, err := env.svc.GetMango(ctx, alice, 404); !errors.Is(err, ErrMangoNotFound) {
		t.Fatalf("expected ErrMangoNotFound, got %v", err)
	}

	if got := env.recorder.Snapshot().LookupDurationCount; got != 3 {
		t.Errorf("LookupDurationCount = %d, want 3", got)
	}
}

func TestMangoService_RowRemovedUnderneathIsNotFound(t *testing.T) {
	env := newMangoTestEnv(t)
	ctx := context.Background()
	m := env.seed(t, alice, "Larry")

	if _, err := env.svc.GetMango(ctx, alice, m.ID); err != nil {
		t.Fatalf("GetMango failed: %v", err)
	}

	// Deleting the owning user cascades to the row outside this service.
	if err := env.store.DeleteMango(ctx, m.ID); err != nil {
		t.Fatalf("store delete failed: %v", err)
	}

	for _, caller := range []string{alice, bob} {
		if _, err := env.svc.GetMango(ctx, caller, m.ID); !errors.Is(err, ErrMangoNotFound) {
			t.Errorf("GetMango(%s): expected ErrMangoNotFound, got %v", caller, err)
		}
		if _, err := env.svc.UpdateMango(ctx, caller, m.ID, json.RawMessage(`{"ripe":false}`)); !errors.Is(err, ErrMangoNotFound) {
			t.Errorf("UpdateMango(%s): expected ErrMangoNotFound, got %v", caller, err)
		}
		if err := env.svc.DeleteMango(ctx, caller, m.ID); !errors.Is(err, ErrMangoNotFound) {
			t.Errorf("DeleteMango(%s): expected ErrMangoNotFound, got %v", caller, err)
		}
	}
	if got := env.recorder.Snapshot().AccessDenied; got != 0 {
		t.Errorf("AccessDenied = %d, want 0 for a row that no longer exists", got)
	}
}

func TestMangoService_UpdateDuringReadIsVisibleNextRead(t *testing.T) {
	env := newMangoTestEnv(t)
	ctx := context.Background()
	m := env.seed(t, alice, "Larry")

	var once sync.Once
	env.store.AfterGet = func(int64) {
		once.Do(func() {
			changed := *m
			changed.Color = "red"
			if err := env.store.UpdateMango(ctx, &changed); err != nil {
				t.Errorf("concurrent update failed: %v", err)
			}
		})
	}

	first, err := env.svc.GetMango(ctx, alice, m.ID)
	if err != nil {
		t.Fatalf("GetMango failed: %v", err)
	}
	if first.Color != "green" {
		t.Errorf("in-flight read color = %q, want the value read before the write", first.Color)
	}

	second, err := env.svc.GetMango(ctx, alice, m.ID)
	if err != nil {
		t.Fatalf("GetMango failed: %v", err)
	}
	if second.Color != "red" {
		t.Errorf("color = %q, want red once the write has committed", second.Color)
	}
}

func TestMangoService_UpdatePartial(t *testing.T) {
	env := newMangoTestEnv(t)
	ctx := context.Background()
	m := env.seed(t, alice, "Larry")

	updated, err := env.svc.UpdateMango(ctx, alice, m.ID, json.RawMessage(`{"color":"yellow","owner":"`+bob+`"}`))
	if err != nil {
		t.Fatalf("UpdateMango failed: %v", err)
	}
	if updated.Color != "yellow" || updated.Name != "Larry" || !updated.Ripe {
		t.Errorf("unexpected fields after update: %+v", updated)
	}
	if updated.OwnerID != alice {
		t.Errorf("owner = %q, want %q", updated.OwnerID, alice)
	}
	if got := env.recorder.Snapshot().MangosUpdated; got != 1 {
		t.Errorf("MangosUpdated = %d, want 1", got)
	}
}

func TestMangoService_UpdateEmptyPayloadKeepsRecord(t *testing.T) {
	env := newMangoTestEnv(t)
	ctx := context.Background()
	m := env.seed(t, alice, "Larry")

	updated, err := env.svc.UpdateMango(ctx, alice, m.ID, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("UpdateMango failed: %v", err)
	}
	if updated.Name != m.Name || updated.Ripe != m.Ripe || updated.Color != m.Color || updated.OwnerID != m.OwnerID {
		t.Errorf("record changed: before %+v after %+v", m, updated)
	}
}

func TestMangoService_UpdateChecksOwnershipBeforeValidation(t *testing.T) {
	env := newMangoTestEnv(t)
	m := env.seed(t, alice, "Larry")

	_, err := env.svc.UpdateMango(context.Background(), bob, m.ID, json.RawMessage(`{"name":""}`))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	stored, _ := env.store.GetMangoByID(context.Background(), m.ID)
	if stored.Name != "Larry" {
		t.Errorf("foreign update must not change the record, name = %q", stored.Name)
	}
}

func TestMangoService_UpdateValidationError(t *testing.T) {
	env := newMangoTestEnv(t)
	m := env.seed(t, alice, "Larry")

	_, err := env.svc.UpdateMango(context.Background(), alice, m.ID, json.RawMessage(`{"name":"  ","ripe":"maybe"}`))
	fields := validationFields(t, err)

	if got := fields["name"]; len(got) != 1 || got[0] != serializer.MsgBlank {
		t.Errorf("name errors = %v", got)
	}
	if got := fields["ripe"]; len(got) != 1 || got[0] != serializer.MsgInvalidBool {
		t.Errorf("ripe errors = %v", got)
	}
	if _, ok := fields["color"]; ok {
		t.Error("absent fields must not be validated in a partial update")
	}
}

func TestMangoService_UpdateMissing(t *testing.T) {
	env := newMangoTestEnv(t)

	_, err := env.svc.UpdateMango(context.Background(), alice, 42, json.RawMessage(`{"name":"x"}`))
	if !errors.Is(err, ErrMangoNotFound) {
		t.Fatalf("expected ErrMangoNotFound, got %v", err)
	}
}

func TestMangoService_GetAfterUpdateSeesNewValues(t *testing.T) {
	env := newMangoTestEnv(t)
	ctx := context.Background()
	m := env.seed(t, alice, "Larry")

	if _, err := env.svc.GetMango(ctx, alice, m.ID); err != nil {
		t.Fatalf("GetMango failed: %v", err)
	}

	if _, err := env.svc.UpdateMango(ctx, alice, m.ID, json.RawMessage(`{"name":"Barry"}`)); err != nil {
		t.Fatalf("UpdateMango failed: %v", err)
	}

	got, err := env.svc.GetMango(ctx, alice, m.ID)
	if err != nil {
		t.Fatalf("GetMango failed: %v", err)
	}
	if got.Name != "Barry" {
		t.Errorf("name = %q, want Barry", got.Name)
	}
}

func TestMangoService_Delete(t *testing.T) {
	env := newMangoTestEnv(t)
	ctx := context.Background()
	m := env.seed(t, alice, "Larry")

	if err := env.svc.DeleteMango(ctx, bob, m.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for other user, got %v", err)
	}
	if env.store.MangoCount() != 1 {
		t.Fatal("foreign delete must not remove the record")
	}

	if _, err := env.svc.GetMango(ctx, alice, m.ID); err != nil {
		t.Fatalf("GetMango failed: %v", err)
	}

	if err := env.svc.DeleteMango(ctx, alice, m.ID); err != nil {
		t.Fatalf("DeleteMango failed: %v", err)
	}
	if _, err := env.svc.GetMango(ctx, alice, m.ID); !errors.Is(err, ErrMangoNotFound) {
		t.Errorf("expected ErrMangoNotFound after delete, got %v", err)
	}
	if err := env.svc.DeleteMango(ctx, alice, m.ID); !errors.Is(err, ErrMangoNotFound) {
		t.Errorf("second delete: expected ErrMangoNotFound, got %v", err)
	}
	if got := env.recorder.Snapshot().MangosDeleted; got != 1 {
		t.Errorf("MangosDeleted = %d, want 1", got)
	}
}

func TestMangoService_StoreFailuresPropagate(t *testing.T) {
	env := newMangoTestEnv(t)
	ctx := context.Background()
	m := env.seed(t, alice, "Larry")
	env.store.Err = fakes.ErrUnavailable

	if _, err := env.svc.GetMango(ctx, alice, m.ID); !errors.Is(err, fakes.ErrUnavailable) {
		t.Errorf("GetMango: expected store error, got %v", err)
	}
	if _, err := env.svc.UpdateMango(ctx, alice, m.ID, json.RawMessage(`{"ripe":false}`)); !errors.Is(err, fakes.ErrUnavailable) {
		t.Errorf("UpdateMango: expected store error, got %v", err)
	}
	if err := env.svc.DeleteMango(ctx, alice, m.ID); !errors.Is(err, fakes.ErrUnavailable) {
		t.Errorf("DeleteMango: expected store error, got %v", err)
	}
}

func TestMangoService_NilRecorderAndLogger(t *testing.T) {
	store := fakes.NewStore()
	svc := NewMangoService(store, nil, nil)
	ctx := context.Background()

	m, err := svc.CreateMango(ctx, alice, json.RawMessage(`{"name":"Larry","ripe":true,"color":"green"}`))
	if err != nil {
		t.Fatalf("CreateMango failed: %v", err)
	}
	got, err := svc.GetMango(ctx, alice, m.ID)
	if err != nil {
		t.Fatalf("GetMango failed: %v", err)
	}
	if got.ID != m.ID {
		t.Errorf("id = %d, want %d", got.ID, m.ID)
	}
}
