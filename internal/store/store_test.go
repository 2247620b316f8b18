package store

import (
	"context"
	"fmt"
	"os"
	"testing"

	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

var testStore *Store

// startPostgres starts a PostgreSQL testcontainer, returns DSN + cleanup func.
func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("room_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start postgres: %w", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("pg connection string: %w", err)
	}
	cleanup := func() { container.Terminate(ctx) }
	return dsn, cleanup, nil
}

func TestMain(m *testing.M) {
	ctx := context.Background()
	dsn, cleanup, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "skipping store tests: %v\n", err)
		os.Exit(0)
	}

	st, err := New(dsn, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		cleanup()
		os.Exit(1)
	}
	if err := st.Migrate(ctx, "../../migrations"); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		st.Close()
		cleanup()
		os.Exit(1)
	}
	testStore = st

	code := m.Run()
	st.Close()
	cleanup()
	os.Exit(code)
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()

	conv, err := testStore.CreateConversation(ctx, "פרויקט גלידה", []ChatMessage{
		{ID: "user-1", Role: "user", Content: "איך מייצבים גלידה טבעונית?"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.VoiceSettings["crisis"] != "Orus" {
		t.Errorf("default voice for crisis = %q, want Orus", conv.VoiceSettings["crisis"])
	}

	got, err := testStore.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "פרויקט גלידה" || len(got.Messages) != 1 {
		t.Errorf("round trip mismatch: %+v", got)
	}

	msgs := append(got.Messages, ChatMessage{ID: "crisis-1", Role: "crisis", Content: "VERDICT:[GO]"})
	if err := testStore.UpdateConversationMessages(ctx, conv.ID, msgs); err != nil {
		t.Fatalf("update messages: %v", err)
	}
	if err := testStore.UpdateVoiceSettings(ctx, conv.ID, map[string]string{"crisis": "Kore"}); err != nil {
		t.Fatalf("update voices: %v", err)
	}

	got, _ = testStore.GetConversation(ctx, conv.ID)
	if len(got.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(got.Messages))
	}
	if got.VoiceSettings["crisis"] != "Kore" {
		t.Errorf("voice not updated: %v", got.VoiceSettings)
	}

	convs, err := testStore.ListConversations(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(convs) == 0 {
		t.Fatal("list returned nothing")
	}

	if err := testStore.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := testStore.GetConversation(ctx, conv.ID); err != ErrNotFound {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestDefaultVoiceSettingsNotAliased(t *testing.T) {
	ctx := context.Background()

	conv, err := testStore.CreateConversation(ctx, "בדיקת קולות", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer testStore.DeleteConversation(ctx, conv.ID)

	// A null voice_settings column falls back to the defaults on scan.
	if err := testStore.UpdateVoiceSettings(ctx, conv.ID, nil); err != nil {
		t.Fatalf("null voices: %v", err)
	}
	got, err := testStore.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.VoiceSettings["crisis"] != "Orus" {
		t.Fatalf("default not applied: %v", got.VoiceSettings)
	}

	got.VoiceSettings["crisis"] = "Kore"
	if DefaultVoiceSettings["crisis"] != "Orus" {
		t.Errorf("shared defaults mutated through a returned conversation: %v", DefaultVoiceSettings)
	}
}

func TestMemoriesRoundTrip(t *testing.T) {
	ctx := context.Background()

	mem, err := testStore.CreateMemory(ctx, "המשתמש מעדיף אגר-אגר", []float64{0.1, 0.2, 0.7}, "conversation")
	if err != nil {
		t.Fatalf("create memory: %v", err)
	}
	if mem.ID == 0 {
		t.Error("memory id not assigned")
	}

	mems, err := testStore.RecentMemories(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	found := false
	for _, m := range mems {
		if m.ID == mem.ID {
			found = true
			if len(m.Vector) != 3 {
				t.Errorf("vector length = %d, want 3", len(m.Vector))
			}
			if m.Category != "conversation" {
				t.Errorf("category = %q", m.Category)
			}
		}
	}
	if !found {
		t.Error("created memory missing from recent list")
	}
}

func TestMemoryContexts(t *testing.T) {
	ctx := context.Background()

	if _, err := testStore.CreateMemoryContext(ctx, "סיכום סבב", []string{"גלידה", "ייצוב"}); err != nil {
		t.Fatalf("create context: %v", err)
	}
	contexts, err := testStore.RecentMemoryContexts(ctx, 5)
	if err != nil {
		t.Fatalf("recent contexts: %v", err)
	}
	if len(contexts) == 0 {
		t.Fatal("no contexts returned")
	}
	if contexts[0].Summary != "סיכום סבב" {
		t.Errorf("summary = %q", contexts[0].Summary)
	}
}

func TestUserProfileEncryptedRoundTrip(t *testing.T) {
	ctx := context.Background()

	core := &CoreProfile{
		Name:      "דני",
		CoreRules: []string{"תמיד בעברית"},
	}
	summary := "עובד על מיזם גלידה"
	if _, err := testStore.UpsertUserProfile(ctx, core, &summary); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := testStore.GetUserProfile(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CoreProfile.Name != "דני" {
		t.Errorf("decrypted name = %q", got.CoreProfile.Name)
	}
	if len(got.CoreProfile.CoreRules) != 1 {
		t.Errorf("rules = %v", got.CoreProfile.CoreRules)
	}
	if got.LivingPromptSummary != summary {
		t.Errorf("summary = %q", got.LivingPromptSummary)
	}

	// Partial update leaves the other field untouched.
	newSummary := "עבר לשלב התמחור"
	if _, err := testStore.UpsertUserProfile(ctx, nil, &newSummary); err != nil {
		t.Fatalf("partial upsert: %v", err)
	}
	got, _ = testStore.GetUserProfile(ctx)
	if got.CoreProfile.Name != "דני" {
		t.Errorf("core profile lost on summary update: %+v", got.CoreProfile)
	}
	if got.LivingPromptSummary != newSummary {
		t.Errorf("summary not updated: %q", got.LivingPromptSummary)
	}
}

func TestAcquiredItemsLedger(t *testing.T) {
	ctx := context.Background()

	item, err := testStore.AddAcquiredItem(ctx, "מכונת גלידה", "expert_recommendation", "הומלץ על ידי השועל המבצעי")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	items, err := testStore.ListAcquiredItems(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, it := range items {
		if it.ID == item.ID && it.Item == "מכונת גלידה" {
			found = true
		}
	}
	if !found {
		t.Error("added item missing from ledger")
	}

	if err := testStore.DeleteAcquiredItem(ctx, item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
