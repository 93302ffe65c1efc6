package storage

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/siohaza/coas/internal/envelope"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	cipher, err := envelope.New(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	store, err := Open(":memory:", cipher)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	store.HashCost = bcrypt.MinCost
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndCheckPassword(t *testing.T) {
	store := openTestStore(t)
	now := time.Unix(1000, 0)

	if err := store.CreateAccount("Alice", "hunter22", "a@example.com", []byte(`{"x":1}`), now); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	ok, err := store.CheckPassword("alice", "hunter22")
	if err != nil || !ok {
		t.Fatalf("expected password to match, got %v %v", ok, err)
	}
	ok, err = store.CheckPassword("Alice", "wrong")
	if err != nil || ok {
		t.Fatalf("expected mismatch, got %v %v", ok, err)
	}
	ok, err = store.CheckPassword("nobody", "hunter22")
	if err != nil || ok {
		t.Fatalf("expected unknown account to fail quietly, got %v %v", ok, err)
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	store := openTestStore(t)
	now := time.Unix(1000, 0)

	if err := store.CreateAccount("Bob", "pw123", "", []byte("{}"), now); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	err := store.CreateAccount("BOB", "other", "", []byte("{}"), now)
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestStateRoundTrip(t *testing.T) {
	store := openTestStore(t)
	now := time.Unix(1000, 0)

	if err := store.CreateAccount("Carol", "pw123", "", []byte(`{"health":3000}`), now); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	state := bytes.Repeat([]byte(`{"health":2500}`), 50)
	if err := store.SaveState("carol", state, now.Add(time.Second)); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	name, got, err := store.LoadState("CAROL")
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if name != "Carol" {
		t.Fatalf("expected display name Carol, got %q", name)
	}
	if !bytes.Equal(got, state) {
		t.Fatalf("state mismatch: %q", got)
	}

	if _, _, err := store.LoadState("dave"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.SaveState("dave", state, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on save, got %v", err)
	}
}

func TestServerRecord(t *testing.T) {
	store := openTestStore(t)

	data, err := store.LoadServer()
	if err != nil || data != nil {
		t.Fatalf("expected empty server record, got %q %v", data, err)
	}

	if err := store.SaveServer([]byte("first"), time.Unix(1, 0)); err != nil {
		t.Fatalf("SaveServer failed: %v", err)
	}
	if err := store.SaveServer([]byte("second"), time.Unix(2, 0)); err != nil {
		t.Fatalf("SaveServer failed: %v", err)
	}

	data, err = store.LoadServer()
	if err != nil {
		t.Fatalf("LoadServer failed: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("expected latest record, got %q", data)
	}
}
