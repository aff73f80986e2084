// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/blogd-app/blogd/internal/model"
	"github.com/blogd-app/blogd/internal/store"
)

func TestGetUser(t *testing.T) {
	db, h := testSetup(t)
	user := createTestUser(t, db, "profile@example.com", model.AuthLevelBasic)

	w := executeHandler(t, h.GetUser, newGetRequest(t, "/api/user/1",
		map[string]string{"id": strconv.FormatInt(user.ID, 10)}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	got := unmarshalData[UserProfile](t, w)
	if got.ID != user.ID {
		t.Errorf("id = %d, want %d", got.ID, user.ID)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Errorf("profile leaks password material: %s", w.Body.String())
	}
}

func TestGetUserNotFound(t *testing.T) {
	_, h := testSetup(t)

	w := executeHandler(t, h.GetUser, newGetRequest(t, "/api/user/999", map[string]string{"id": "999"}))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestListUsersPagination(t *testing.T) {
	db, h := testSetup(t)
	for i := 0; i < 25; i++ {
		createTestUser(t, db, fmt.Sprintf("member%02d@example.com", i), model.AuthLevelBasic)
	}

	w := executeHandler(t, h.ListUsers, newGetRequest(t, "/api/user?page=2&limit=10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	users, meta := unmarshalList[UserProfile](t, w)
	if len(users) != 10 {
		t.Errorf("len = %d, want 10", len(users))
	}
	if meta == nil || meta.Total != 25 || meta.Page != 2 || meta.Pages != 3 {
		t.Errorf("meta = %+v, want total 25 page 2 pages 3", meta)
	}
}

func TestUpdateUserSelf(t *testing.T) {
	db, h := testSetup(t)
	user := createTestUser(t, db, "edit@example.com", model.AuthLevelBasic)

	body := `{"first_name":"Grace","location":"NYC","birth_date":"1990-12-09"}`
	req := withUser(newJSONRequest(t, http.MethodPatch, "/api/user/1", body,
		map[string]string{"id": strconv.FormatInt(user.ID, 10)}), user)
	w := executeHandler(t, h.UpdateUser, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	got := unmarshalData[UserProfile](t, w)
	if got.FirstName != "Grace" {
		t.Errorf("first_name = %q, want Grace", got.FirstName)
	}
	if got.Location != "NYC" {
		t.Errorf("location = %q, want NYC", got.Location)
	}
	// Untouched fields survive a partial update.
	if got.LastName != user.LastName {
		t.Errorf("last_name = %q, want %q", got.LastName, user.LastName)
	}
}

func TestUpdateUserForbiddenForOthers(t *testing.T) {
	db, h := testSetup(t)
	owner := createTestUser(t, db, "owner@example.com", model.AuthLevelBasic)
	other := createTestUser(t, db, "other@example.com", model.AuthLevelBasic)

	req := withUser(newJSONRequest(t, http.MethodPatch, "/api/user/1", `{"first_name":"X"}`,
		map[string]string{"id": strconv.FormatInt(owner.ID, 10)}), other)
	w := executeHandler(t, h.UpdateUser, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestUpdateUserAdminAllowed(t *testing.T) {
	db, h := testSetup(t)
	user := createTestUser(t, db, "target@example.com", model.AuthLevelBasic)
	admin := createTestUser(t, db, "admin@example.com", model.AuthLevelAdmin)

	req := withUser(newJSONRequest(t, http.MethodPatch, "/api/user/1", `{"occupation":"Astronaut"}`,
		map[string]string{"id": strconv.FormatInt(user.ID, 10)}), admin)
	w := executeHandler(t, h.UpdateUser, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestUpdateUserDuplicateEmail(t *testing.T) {
	db, h := testSetup(t)
	user := createTestUser(t, db, "me@example.com", model.AuthLevelBasic)
	createTestUser(t, db, "taken@example.com", model.AuthLevelBasic)

	req := withUser(newJSONRequest(t, http.MethodPatch, "/api/user/1", `{"email":"Taken@Example.com"}`,
		map[string]string{"id": strconv.FormatInt(user.ID, 10)}), user)
	w := executeHandler(t, h.UpdateUser, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if detail := unmarshalError(t, w); detail.Code != "conflict" {
		t.Errorf("code = %q, want conflict", detail.Code)
	}
}

func TestUpdateStatus(t *testing.T) {
	db, h := testSetup(t)
	user := createTestUser(t, db, "status@example.com", model.AuthLevelBasic)

	req := withUser(newJSONRequest(t, http.MethodPut, "/api/user/1/status", `{"status":"Shipping it"}`,
		map[string]string{"id": strconv.FormatInt(user.ID, 10)}), user)
	w := executeHandler(t, h.UpdateStatus, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := unmarshalData[UserProfile](t, w); got.Status != "Shipping it" {
		t.Errorf("status = %q, want Shipping it", got.Status)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	db, h := testSetup(t)
	user := createTestUser(t, db, "doomed@example.com", model.AuthLevelBasic)
	post := createTestPost(t, db, user.ID, "Doomed Post")
	createTestComment(t, db, post.ID, user.ID, nil, "Doomed comment")

	req := withUser(newDeleteRequest(t, "/api/user/1",
		map[string]string{"id": strconv.FormatInt(user.ID, 10)}), user)
	w := executeHandler(t, h.DeleteUser, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	queries := store.New(db)
	if _, err := queries.GetUserByID(context.Background(), user.ID); err == nil {
		t.Error("user still exists")
	}
	if _, err := queries.GetPostByID(context.Background(), post.ID); err == nil {
		t.Error("post survived user deletion")
	}
	if n, _ := queries.CountCommentsByPost(context.Background(), post.ID); n != 0 {
		t.Errorf("comments survived user deletion: %d", n)
	}
}

func TestDeleteUserForbiddenForOthers(t *testing.T) {
	db, h := testSetup(t)
	victim := createTestUser(t, db, "victim@example.com", model.AuthLevelBasic)
	other := createTestUser(t, db, "bystander@example.com", model.AuthLevelBasic)

	req := withUser(newDeleteRequest(t, "/api/user/1",
		map[string]string{"id": strconv.FormatInt(victim.ID, 10)}), other)
	w := executeHandler(t, h.DeleteUser, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}
