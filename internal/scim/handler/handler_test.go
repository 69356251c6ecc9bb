package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"scimgate/internal/audit"
	auditstore "scimgate/internal/audit/store"
	"scimgate/internal/outbox"
	outboxstore "scimgate/internal/outbox/store"
	"scimgate/internal/platform/middleware"
	"scimgate/internal/scim/service"
	groupstore "scimgate/internal/scim/store/group"
	userstore "scimgate/internal/scim/store/user"
	"scimgate/pkg/platform/tx"
	"scimgate/pkg/testutil"
)

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	svc := service.New(
		userstore.NewInMemory(),
		groupstore.NewInMemory(),
		outbox.NewRecorder(outboxstore.NewInMemory()),
		audit.NewRecorder(auditstore.NewInMemory()),
		tx.NewInMemoryRunner(),
		service.WithLogger(logger),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestScope)
	New(svc, logger).Register(r)
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.DoRequest(router, testutil.NewJSONRequest(t, method, path, payload))
}

func createUserPayload(userName string) map[string]any {
	return map[string]any{
		"externalId":  "ext-" + userName,
		"userName":    userName,
		"displayName": "Test " + userName,
		"emails": []map[string]any{
			{"value": userName + "@example.com", "primary": true},
		},
	}
}

func TestUserLifecycleViaHandlers(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/scim/v2/Users", createUserPayload("ada"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating user, got %d: %s", rec.Code, rec.Body.String())
	}

	var created UserResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	if created.ID == "" || !created.Active {
		t.Fatalf("expected active user with id, got %+v", created)
	}
	if created.Emails[0].Value != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Emails[0].Value)
	}

	getRec := doJSON(t, router, http.MethodGet, "/scim/v2/Users/"+created.ID, nil)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching user, got %d", getRec.Code)
	}

	patchRec := doJSON(t, router, http.MethodPatch, "/scim/v2/Users/"+created.ID, map[string]any{
		"displayName": "Ada King",
	})
	if patchRec.Code != http.StatusOK {
		t.Fatalf("expected 200 patching user, got %d: %s", patchRec.Code, patchRec.Body.String())
	}
	var patched UserResponse
	if err := json.NewDecoder(patchRec.Body).Decode(&patched); err != nil {
		t.Fatalf("failed to decode patch response: %v", err)
	}
	if patched.DisplayName != "Ada King" {
		t.Fatalf("expected updated display name, got %q", patched.DisplayName)
	}

	delRec := doJSON(t, router, http.MethodDelete, "/scim/v2/Users/"+created.ID, nil)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 deleting user, got %d", delRec.Code)
	}

	afterRec := doJSON(t, router, http.MethodGet, "/scim/v2/Users/"+created.ID, nil)
	if afterRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching deactivated user, got %d", afterRec.Code)
	}
	var after UserResponse
	if err := json.NewDecoder(afterRec.Body).Decode(&after); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if after.Active {
		t.Fatalf("expected user to be deactivated after delete")
	}
}

func TestCreateUserRejections(t *testing.T) {
	router := newRouter(t)

	if rec := doJSON(t, router, http.MethodPost, "/scim/v2/Users", createUserPayload("grace")); rec.Code != http.StatusCreated {
		t.Fatalf("seed create failed with %d", rec.Code)
	}

	t.Run("duplicate yields 409", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/scim/v2/Users", createUserPayload("grace"))
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409 for duplicate, got %d", rec.Code)
		}
	})

	t.Run("invalid email yields 400", func(t *testing.T) {
		payload := createUserPayload("lin")
		payload["emails"] = []map[string]any{{"value": "not-an-email", "primary": true}}
		rec := doJSON(t, router, http.MethodPost, "/scim/v2/Users", payload)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for invalid email, got %d", rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode error body: %v", err)
		}
		if body["error_description"] == "" {
			t.Fatalf("expected error description in %v", body)
		}
	})

	t.Run("missing userName yields 400", func(t *testing.T) {
		payload := createUserPayload("x")
		payload["userName"] = ""
		rec := doJSON(t, router, http.MethodPost, "/scim/v2/Users", payload)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for missing userName, got %d", rec.Code)
		}
	})

	t.Run("malformed id yields 400", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/scim/v2/Users/not-a-uuid", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
		}
	})

	t.Run("unknown id yields 404", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/scim/v2/Users/00000000-0000-0000-0000-000000000001", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
		}
	})
}

func TestListUsersEnvelope(t *testing.T) {
	router := newRouter(t)
	for _, name := range []string{"alpha", "beta", "alphabet"} {
		if rec := doJSON(t, router, http.MethodPost, "/scim/v2/Users", createUserPayload(name)); rec.Code != http.StatusCreated {
			t.Fatalf("seed create failed with %d", rec.Code)
		}
	}

	rec := doJSON(t, router, http.MethodGet, `/scim/v2/Users?filter=userName%20co%20%22alpha%22&startIndex=1&count=1`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing users, got %d", rec.Code)
	}

	list := testutil.UnmarshalResponse[ListResponse](t, rec)
	if list.TotalResults != 2 {
		t.Fatalf("expected 2 total results, got %d", list.TotalResults)
	}
	if list.ItemsPerPage != 1 || len(list.Resources) != 1 {
		t.Fatalf("expected one resource per page, got %d", len(list.Resources))
	}
	if list.Schemas[0] != schemaListResponse {
		t.Fatalf("unexpected list schema %v", list.Schemas)
	}

	zeroRec := doJSON(t, router, http.MethodGet, "/scim/v2/Users?count=0", nil)
	if zeroRec.Code != http.StatusOK {
		t.Fatalf("expected 200 for count=0, got %d", zeroRec.Code)
	}
	zero := testutil.UnmarshalResponse[ListResponse](t, zeroRec)
	if zero.TotalResults != 3 {
		t.Fatalf("expected the full total for count=0, got %d", zero.TotalResults)
	}
	if len(zero.Resources) != 0 {
		t.Fatalf("expected no resources for count=0, got %d", len(zero.Resources))
	}
}

func TestGroupMembershipViaHandlers(t *testing.T) {
	router := newRouter(t)

	userRec := doJSON(t, router, http.MethodPost, "/scim/v2/Users", createUserPayload("ada"))
	if userRec.Code != http.StatusCreated {
		t.Fatalf("seed user create failed with %d", userRec.Code)
	}
	var user UserResponse
	if err := json.NewDecoder(userRec.Body).Decode(&user); err != nil {
		t.Fatalf("failed to decode user: %v", err)
	}

	groupRec := doJSON(t, router, http.MethodPost, "/scim/v2/Groups", map[string]any{
		"externalId":  "grp-1",
		"displayName": "Engineering",
	})
	if groupRec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating group, got %d: %s", groupRec.Code, groupRec.Body.String())
	}
	var group GroupResponse
	if err := json.NewDecoder(groupRec.Body).Decode(&group); err != nil {
		t.Fatalf("failed to decode group: %v", err)
	}

	addRec := doJSON(t, router, http.MethodPost, "/scim/v2/Groups/"+group.ID+"/members", map[string]any{
		"userId": user.ID,
	})
	if addRec.Code != http.StatusOK {
		t.Fatalf("expected 200 adding member, got %d: %s", addRec.Code, addRec.Body.String())
	}
	var withMember GroupResponse
	if err := json.NewDecoder(addRec.Body).Decode(&withMember); err != nil {
		t.Fatalf("failed to decode group: %v", err)
	}
	if len(withMember.Members) != 1 || withMember.Members[0].Value != user.ID {
		t.Fatalf("expected member %s, got %+v", user.ID, withMember.Members)
	}

	dupRec := doJSON(t, router, http.MethodPost, "/scim/v2/Groups/"+group.ID+"/members", map[string]any{
		"userId": user.ID,
	})
	if dupRec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate member, got %d", dupRec.Code)
	}

	rmRec := doJSON(t, router, http.MethodDelete, "/scim/v2/Groups/"+group.ID+"/members/"+user.ID, nil)
	if rmRec.Code != http.StatusOK {
		t.Fatalf("expected 200 removing member, got %d", rmRec.Code)
	}

	missingRec := doJSON(t, router, http.MethodDelete, "/scim/v2/Groups/"+group.ID+"/members/"+user.ID, nil)
	if missingRec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 removing absent member, got %d", missingRec.Code)
	}
}

func TestMetadataEndpoints(t *testing.T) {
	router := newRouter(t)

	for _, path := range []string{
		"/scim/v2/ServiceProviderConfig",
		"/scim/v2/ResourceTypes",
		"/scim/v2/Schemas",
	} {
		rec := doJSON(t, router, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 from %s, got %d", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected JSON from %s, got %q", path, ct)
		}
	}
}
