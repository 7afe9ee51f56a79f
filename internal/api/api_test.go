package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erazemk/lofoph/internal/auth"
	"github.com/erazemk/lofoph/internal/client"
	"github.com/erazemk/lofoph/internal/db"
	"github.com/erazemk/lofoph/internal/model"
	"github.com/erazemk/lofoph/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(database, testJWTSecret, Options{}))
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, server *httptest.Server) *client.Client {
	t.Helper()
	c, err := client.New(server.URL+"/api/v1", 5*time.Second)
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	return c
}

func signup(t *testing.T, c *client.Client, email string) *model.User {
	t.Helper()
	u, err := c.Signup(context.Background(), "Maria Santos", email, "password123", "password123")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	return u
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	img.Set(2, 2, color.RGBA{200, 0, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func testReport(itemType string) model.Report {
	return model.Report{
		Name:        "Blue umbrella",
		Description: "Left on the MRT",
		ItemType:    itemType,
		City:        "Makati",
		Province:    "Metro Manila",
		Date:        time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Reward:      250,
		ContactType: model.ContactPhone,
		Contact:     "09171234567",
		Category:    "Personal Accessories",
	}
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	return body
}

func TestSessionFlow(t *testing.T) {
	server := setupTestServer(t)
	c := newClient(t, server)
	ctx := context.Background()

	u := signup(t, c, "maria@example.com")
	if u.ID == "" || u.Email != "maria@example.com" || u.Role != model.RoleUser {
		t.Errorf("unexpected user: %+v", u)
	}
	if c.SessionToken() == "" {
		t.Fatal("expected session cookie after signup")
	}

	me, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.ID != u.ID {
		t.Errorf("expected %s, got %s", u.ID, me.ID)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if c.SessionToken() != "" {
		t.Error("expected session cookie to be cleared")
	}
	if _, err := c.Me(ctx); !errors.Is(err, client.ErrUnauthorized) {
		t.Errorf("expected unauthorized after logout, got %v", err)
	}

	if _, err := c.Login(ctx, "MARIA@example.com", "password123"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := c.Me(ctx); err != nil {
		t.Errorf("Me after login: %v", err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	server := setupTestServer(t)
	signup(t, newClient(t, server), "dup@example.com")

	_, err := newClient(t, server).Signup(context.Background(), "Other", "dup@example.com", "password123", "password123")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != duplicateKeyCode {
		t.Errorf("expected 400/%d, got %d/%d", duplicateKeyCode, apiErr.Status, apiErr.Code)
	}
}

func TestSignupRejectsInvalid(t *testing.T) {
	tests := []struct {
		name                 string
		email, pass, confirm string
	}{
		{"mismatch", "a@example.com", "password123", "password124"},
		{"short password", "a@example.com", "short", "short"},
		{"bad email", "not-an-email", "password123", "password123"},
		{"missing email", "", "password123", "password123"},
	}

	server := setupTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newClient(t, server).Signup(context.Background(), "Name", tt.email, tt.pass, tt.confirm)
			var apiErr *client.APIError
			if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
				t.Errorf("expected 400, got %v", err)
			}
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	server := setupTestServer(t)
	signup(t, newClient(t, server), "login@example.com")

	_, err := newClient(t, server).Login(context.Background(), "login@example.com", "wrong-password")
	if !errors.Is(err, client.ErrUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestRevokedTokenRejected(t *testing.T) {
	server := setupTestServer(t)
	c := newClient(t, server)
	signup(t, c, "revoke@example.com")
	token := c.SessionToken()

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for revoked token, got %d", resp.StatusCode)
	}
}

func TestMeUnauthenticated(t *testing.T) {
	server := setupTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/users/me")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["status"] != statusFail {
		t.Errorf("expected fail status, got %v", body["status"])
	}
}

func TestItemsFlow(t *testing.T) {
	server := setupTestServer(t)
	c := newClient(t, server)
	ctx := context.Background()
	u := signup(t, c, "reporter@example.com")

	lost := testReport(model.ItemTypeLost)
	lost.Images = []model.Image{{Filename: "umbrella.png", ContentType: "image/png", Data: testPNG(t)}}
	if err := c.CreateItem(ctx, lost); err != nil {
		t.Fatalf("CreateItem lost: %v", err)
	}
	if err := c.CreateItem(ctx, testReport(model.ItemTypeFound)); err != nil {
		t.Fatalf("CreateItem found: %v", err)
	}

	items, err := c.ListItems(ctx, client.ListQuery{Page: 1, Limit: 8, ItemType: model.ItemTypeLost})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 lost item, got %d", len(items))
	}
	item := items[0]
	if item.User.ID != u.ID || item.User.Name != "Maria Santos" {
		t.Errorf("expected reporter to be embedded, got %+v", item.User)
	}
	if !item.ShowReward() || *item.Reward != 250 {
		t.Errorf("expected reward 250, got %v", item.Reward)
	}
	if len(item.Images) != 1 || !strings.HasPrefix(item.Images[0], imagePath) {
		t.Fatalf("expected one served image path, got %v", item.Images)
	}

	resp, err := http.Get(c.ResolveURL(item.Images[0]))
	if err != nil {
		t.Fatalf("fetching image: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("expected jpeg image, got %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	got, err := c.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Name != lost.Name || got.Category[0] != lost.Category {
		t.Errorf("unexpected item: %+v", got)
	}

	found, err := c.ListItems(ctx, client.ListQuery{ItemType: model.ItemTypeFound})
	if err != nil {
		t.Fatalf("ListItems found: %v", err)
	}
	if len(found) != 1 || found[0].Reward != nil {
		t.Errorf("expected one found item without reward, got %+v", found)
	}
}

func TestGetItemMissing(t *testing.T) {
	server := setupTestServer(t)

	_, err := newClient(t, server).GetItem(context.Background(), "does-not-exist")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Message != msgNoDocument {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestCreateItemRequiresSession(t *testing.T) {
	server := setupTestServer(t)

	err := newClient(t, server).CreateItem(context.Background(), testReport(model.ItemTypeLost))
	if !errors.Is(err, client.ErrUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestCreateItemRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Report)
	}{
		{"too many images", func(r *model.Report) {
			for range model.MaxReportImages + 1 {
				r.Images = append(r.Images, model.Image{Filename: "x.png", ContentType: "image/png", Data: testPNG(t)})
			}
		}},
		{"not an image", func(r *model.Report) {
			r.Images = []model.Image{{Filename: "x.txt", ContentType: "text/plain", Data: []byte("hello")}}
		}},
		{"missing city", func(r *model.Report) { r.City = "" }},
		{"bad type", func(r *model.Report) { r.ItemType = "stolen" }},
	}

	server := setupTestServer(t)
	c := newClient(t, server)
	signup(t, c, "invalid@example.com")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testReport(model.ItemTypeLost)
			tt.mutate(&r)
			err := c.CreateItem(context.Background(), r)
			var apiErr *client.APIError
			if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
				t.Errorf("expected 400, got %v", err)
			}
		})
	}

	items, err := c.ListItems(context.Background(), client.ListQuery{})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected nothing stored, got %d items", len(items))
	}
}

func TestBearerToken(t *testing.T) {
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(database, testJWTSecret, Options{}))
	t.Cleanup(server.Close)

	hash, _ := auth.HashPassword("password123")
	acct, err := store.CreateUser(context.Background(), database, "Admin", "admin@example.com", hash, model.RoleAdmin)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	token, _ := auth.GenerateToken(testJWTSecret, acct.ID, acct.Email, acct.Role)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	doc, _ := body["data"].(map[string]any)["doc"].(map[string]any)
	if doc["role"] != model.RoleAdmin {
		t.Errorf("expected admin role, got %v", doc)
	}
}

func TestListInvalidPage(t *testing.T) {
	server := setupTestServer(t)

	for _, q := range []string{"page=0", "page=x", "limit=-1"} {
		resp, err := http.Get(server.URL + "/api/v1/items?" + q)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, resp.StatusCode)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	server := setupTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/nope")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["status"] != statusFail {
		t.Errorf("expected fail status, got %v", body["status"])
	}
}
