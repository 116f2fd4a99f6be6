package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

var testSecret = []byte("state-signing-secret")

// --- State Token Tests ---

func TestStateRoundTrip(t *testing.T) {
	now := time.Now()
	token, err := signState(testSecret, statePayload{ChatID: 42, Nonce: "n-1", IssuedAt: now.Unix()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := verifyState(testSecret, token, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ChatID != 42 || p.Nonce != "n-1" {
		t.Errorf("payload mismatch: %+v", p)
	}
}

func TestStateExpires(t *testing.T) {
	now := time.Now()
	token, err := signState(testSecret, statePayload{ChatID: 42, Nonce: "n-1", IssuedAt: now.Unix()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := verifyState(testSecret, token, now.Add(StateTTL+time.Second)); err == nil {
		t.Error("expected expiry error")
	}
	if _, err := verifyState(testSecret, token, now.Add(StateTTL-time.Second)); err != nil {
		t.Errorf("token should still verify inside the window: %v", err)
	}
}

func TestStateRejectsTampering(t *testing.T) {
	now := time.Now()
	token, err := signState(testSecret, statePayload{ChatID: 42, Nonce: "n-1", IssuedAt: now.Unix()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]string{
		"flipped payload byte": "A" + token[1:],
		"wrong secret":         token,
		"missing signature":    strings.Split(token, ".")[0],
		"garbage":              "not-a-token",
	}
	for name, tok := range cases {
		secret := testSecret
		if name == "wrong secret" {
			secret = []byte("another-secret")
		}
		if _, err := verifyState(secret, tok, now); err == nil {
			t.Errorf("%s: expected verification failure", name)
		}
	}
}

// --- File Store Tests ---

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewFileStore(path)
	ctx := context.Background()

	tok := &oauth2.Token{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
	}
	if err := store.Save(ctx, tok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AccessToken != tok.AccessToken || got.RefreshToken != tok.RefreshToken {
		t.Errorf("token mismatch: %+v", got)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	if _, err := store.Load(context.Background()); err == nil {
		t.Error("expected error for a missing token file")
	}
}

// --- Callback Tests ---

type notifications struct {
	texts map[int64][]string
}

func (n *notifications) notify(chatID int64, text string) error {
	if n.texts == nil {
		n.texts = make(map[int64][]string)
	}
	n.texts[chatID] = append(n.texts[chatID], text)
	return nil
}

func newTestService(t *testing.T) (*Service, *notifications, *FileStore) {
	t.Helper()
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh-access","refresh_token":"fresh-refresh","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(tokenSrv.Close)

	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	n := &notifications{}
	svc := NewService(&oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/oauth/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: "http://auth.example/auth", TokenURL: tokenSrv.URL},
	}, store, testSecret, n.notify)
	return svc, n, store
}

func stateFromAuthURL(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatal("auth URL carries no state parameter")
	}
	return state
}

func TestCallbackExchangesAndStoresToken(t *testing.T) {
	svc, n, store := newTestService(t)

	authURL, err := svc.AuthURL(42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := stateFromAuthURL(t, authURL)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=auth-code&state="+url.QueryEscape(state), nil)
	rr := httptest.NewRecorder()
	svc.HandleCallback(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	tok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("token not persisted: %v", err)
	}
	if tok.AccessToken != "fresh-access" {
		t.Errorf("expected exchanged token, got %q", tok.AccessToken)
	}
	if msgs := n.texts[42]; len(msgs) != 1 || !strings.Contains(msgs[0], "✅") {
		t.Errorf("expected success notification, got %v", msgs)
	}
}

func TestCallbackLinkWorksOnce(t *testing.T) {
	svc, _, _ := newTestService(t)

	authURL, err := svc.AuthURL(42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := stateFromAuthURL(t, authURL)
	target := "/oauth/callback?code=auth-code&state=" + url.QueryEscape(state)

	rr := httptest.NewRecorder()
	svc.HandleCallback(rr, httptest.NewRequest(http.MethodGet, target, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("first use should succeed, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	svc.HandleCallback(rr, httptest.NewRequest(http.MethodGet, target, nil))
	if rr.Code != http.StatusForbidden {
		t.Errorf("second use should be rejected, got %d", rr.Code)
	}
}

func TestNewLinkSupersedesOld(t *testing.T) {
	svc, _, _ := newTestService(t)

	first, err := svc.AuthURL(42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.AuthURL(42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := stateFromAuthURL(t, first)
	rr := httptest.NewRecorder()
	svc.HandleCallback(rr, httptest.NewRequest(http.MethodGet,
		"/oauth/callback?code=auth-code&state="+url.QueryEscape(state), nil))
	if rr.Code != http.StatusForbidden {
		t.Errorf("superseded link should be rejected, got %d", rr.Code)
	}
}

func TestCallbackUserDenied(t *testing.T) {
	svc, n, _ := newTestService(t)

	authURL, err := svc.AuthURL(42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := stateFromAuthURL(t, authURL)

	rr := httptest.NewRecorder()
	svc.HandleCallback(rr, httptest.NewRequest(http.MethodGet,
		"/oauth/callback?error=access_denied&state="+url.QueryEscape(state), nil))

	if rr.Code != http.StatusOK {
		t.Errorf("denied callback still renders a page, got %d", rr.Code)
	}
	if msgs := n.texts[42]; len(msgs) != 1 || !strings.Contains(msgs[0], "cancelada") {
		t.Errorf("expected cancellation notification, got %v", msgs)
	}
}

func TestCallbackRejectsForgedState(t *testing.T) {
	svc, _, _ := newTestService(t)

	rr := httptest.NewRecorder()
	svc.HandleCallback(rr, httptest.NewRequest(http.MethodGet,
		"/oauth/callback?code=auth-code&state=forged", nil))
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
}
