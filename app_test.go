package main

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/zalando/go-keyring"

	"litcode/internal/llm"
	"litcode/internal/security"
)

func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "config.json")
	app, err := NewApp(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(app.Close)
	return app, path
}

func TestSetKeyWritesPlaceholder(t *testing.T) {
	app, path := newTestApp(t)

	if err := app.SetKey(llm.BackendOpenAI, "sk-test-1234567890"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-test-1234567890") {
		t.Fatal("config file must not contain the key")
	}
	if !strings.Contains(string(data), security.Placeholder) {
		t.Fatalf("expected placeholder in %s", data)
	}

	if got := app.Credentials(llm.BackendOpenAI); got != "sk-test-1234567890" {
		t.Fatalf("in-memory config should keep the key, got %q", got)
	}

	reloaded, err := NewApp(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reloaded.Close()
	if got := reloaded.Credentials(llm.BackendOpenAI); got != "sk-test-1234567890" {
		t.Fatalf("expected key resolved from keyring, got %q", got)
	}
}

func TestPlaintextKeyIsMigrated(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := `{"backend":"claude","providers":{"claude":{"model":"claude-3-5-sonnet-latest","api_key":"sk-ant-plaintext"}}}`
	if err := os.WriteFile(path, []byte(cfg), 0600); err != nil {
		t.Fatal(err)
	}

	app, err := NewApp(path)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "sk-ant-plaintext") {
		t.Fatal("plaintext key should have been moved to the key store")
	}
	if got := app.Credentials(llm.BackendClaude); got != "sk-ant-plaintext" {
		t.Fatalf("unexpected credentials %q", got)
	}
	b, err := app.Backend("")
	if err != nil || b != llm.BackendClaude {
		t.Fatalf("expected claude, got %q (%v)", b, err)
	}
}

func TestDeleteKey(t *testing.T) {
	app, _ := newTestApp(t)

	if err := app.SetKey(llm.BackendGemini, "AIza-0123456789"); err != nil {
		t.Fatal(err)
	}
	if err := app.DeleteKey(llm.BackendGemini); err != nil {
		t.Fatal(err)
	}
	if got := app.Credentials(llm.BackendGemini); got != "" {
		t.Fatalf("expected no key, got %q", got)
	}
}

func TestCredentialsEnvOverride(t *testing.T) {
	app, _ := newTestApp(t)
	t.Setenv("LITCODE_GEMINI_API_KEY", "from-env")

	if got := app.Target(llm.BackendGemini).Credentials; got != "from-env" {
		t.Fatalf("expected env key, got %q", got)
	}
}

func TestBackendSelection(t *testing.T) {
	app, path := newTestApp(t)

	b, err := app.Backend("")
	if err != nil || b != llm.BackendGemini {
		t.Fatalf("expected gemini default, got %q (%v)", b, err)
	}
	if b, _ := app.Backend("anthropic"); b != llm.BackendClaude {
		t.Fatalf("override should win, got %q", b)
	}
	if _, err := app.Backend("llama"); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}

	if err := app.UseBackend(llm.BackendOpenAI); err != nil {
		t.Fatal(err)
	}
	reloaded, err := NewApp(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reloaded.Close()
	if b, _ := reloaded.Backend(""); b != llm.BackendOpenAI {
		t.Fatalf("expected persisted openai, got %q", b)
	}
}

func TestTelegramTokenStored(t *testing.T) {
	app, path := newTestApp(t)

	if err := app.SetTelegramToken("123456:ABCDEF"); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "123456:ABCDEF") {
		t.Fatal("token must not be written to disk")
	}
	if tg := app.Config().Channels.Telegram; tg == nil || tg.Token != "123456:ABCDEF" {
		t.Fatalf("unexpected telegram config %+v", tg)
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()
	want := []string{"analyze", "followup", "chat", "serve", "keys", "use", "backends"}
	if len(root.Commands) != len(want) {
		t.Fatalf("expected %d commands, got %d", len(want), len(root.Commands))
	}
	for i, name := range want {
		if root.Commands[i].Name != name {
			t.Fatalf("command %d: expected %s, got %s", i, name, root.Commands[i].Name)
		}
	}
}

func TestLazyResourcesAreShared(t *testing.T) {
	app, _ := newTestApp(t)

	const n = 8
	mems := make([]any, n)
	scrapers := make([]any, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mem, err := app.Memory()
			if err != nil {
				t.Error(err)
				return
			}
			mems[i] = mem
			scrapers[i] = app.Scraper()
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if mems[i] != mems[0] {
			t.Fatal("Memory opened more than one store")
		}
		if scrapers[i] != scrapers[0] {
			t.Fatal("Scraper built more than one scraper")
		}
	}
}
