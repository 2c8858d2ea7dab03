package store_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/mmynk/posclient/internal/api"
	"github.com/mmynk/posclient/internal/backendtest"
	"github.com/mmynk/posclient/internal/models"
	"github.com/mmynk/posclient/internal/store"
)

func TestUserStoreRefusesNonAdmins(t *testing.T) {
	e := newEnv(t)
	session := e.login(t, backendtest.WaiterEmail, false)
	users := store.NewUserStore(e.client, session, nil)
	ctx := context.Background()
	before := e.srv.TotalCalls()

	if err := users.FetchUsers(ctx); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("FetchUsers: err = %v, want ErrForbidden", err)
	}
	if _, err := users.CreateUser(ctx, store.UserInput{Name: "X"}); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("CreateUser: err = %v, want ErrForbidden", err)
	}
	if err := users.DeleteUser(ctx, 3); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("DeleteUser: err = %v, want ErrForbidden", err)
	}
	if e.srv.TotalCalls() != before {
		t.Error("refused actions reached the backend")
	}
}

func TestUserRosterCRUD(t *testing.T) {
	e := newEnv(t)
	session := e.login(t, backendtest.AdminEmail, false)
	users := store.NewUserStore(e.client, session, nil)
	ctx := context.Background()

	if err := users.FetchUsers(ctx); err != nil {
		t.Fatalf("FetchUsers failed: %v", err)
	}
	if len(users.Users()) != 3 {
		t.Fatalf("users = %d, want 3", len(users.Users()))
	}

	created, err := users.CreateUser(ctx, store.UserInput{
		Name:     "Pedro Cajero",
		Email:    "pedro@pos.test",
		Password: "caja-segura",
		Role:     models.RoleWaiter,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if users.Users()[0].ID != created.ID || created.Role != models.RoleWaiter {
		t.Errorf("created user = %+v, roster head = %+v", created, users.Users()[0])
	}

	inactive := false
	updated, err := users.UpdateUser(ctx, created.ID, store.UserInput{
		Name:     "Pedro Cajero",
		Email:    "pedro@pos.test",
		Role:     models.RoleKitchen,
		IsActive: &inactive,
	})
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if updated.Role != models.RoleKitchen || updated.IsActive {
		t.Errorf("updated user = %+v", updated)
	}
	if got := e.srv.LastForm(http.MethodPost, "/users/:id")[api.MethodField]; len(got) != 1 || got[0] != http.MethodPut {
		t.Errorf("_method = %v, want PUT", got)
	}
	if users.Users()[0].Role != models.RoleKitchen {
		t.Error("roster entry not spliced in place")
	}

	if err := users.DeleteUser(ctx, created.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if len(users.Users()) != 3 {
		t.Errorf("users = %d, want 3", len(users.Users()))
	}

	// The backend refuses self-deletion; the roster must not change.
	if err := users.DeleteUser(ctx, 1); api.StatusCode(err) != http.StatusUnprocessableEntity {
		t.Fatalf("self delete: err = %v, want 422", err)
	}
	if len(users.Users()) != 3 {
		t.Error("failed delete changed the roster")
	}
}

func TestCreateUserValidation(t *testing.T) {
	e := newEnv(t)
	session := e.login(t, backendtest.AdminEmail, false)
	users := store.NewUserStore(e.client, session, nil)

	_, err := users.CreateUser(context.Background(), store.UserInput{
		Name:     "Dup",
		Email:    backendtest.WaiterEmail,
		Password: "short",
		Role:     "chef",
	})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("err = %v, want 422", err)
	}
	for _, field := range []string{"email", "password", "role"} {
		if len(apiErr.Fields[field]) == 0 {
			t.Errorf("missing %s error", field)
		}
	}
	if len(users.Users()) != 0 {
		t.Error("failed create changed the roster")
	}
}
