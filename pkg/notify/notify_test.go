package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestTokenRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		build func() (string, error)
		want  Token
	}{
		{
			"item approve",
			func() (string, error) { return ItemToken(ActionApprove, "20260823-120000", 3) },
			Token{Action: ActionApprove, BatchID: "20260823-120000", ItemIndex: 3},
		},
		{
			"item keep",
			func() (string, error) { return ItemToken(ActionKeep, "20260823-120000", 1) },
			Token{Action: ActionKeep, BatchID: "20260823-120000", ItemIndex: 1},
		},
		{
			"batch apply",
			func() (string, error) { return BatchToken(ActionApply, "20260823-120000") },
			Token{Action: ActionApply, BatchID: "20260823-120000"},
		},
		{
			"batch cancel",
			func() (string, error) { return BatchToken(ActionCancel, "20260823-120000") },
			Token{Action: ActionCancel, BatchID: "20260823-120000"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.build()
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if len(raw) > MaxTokenLen {
				t.Fatalf("token %q exceeds budget", raw)
			}
			got, err := ParseToken(raw)
			if err != nil {
				t.Fatalf("ParseToken(%q): %v", raw, err)
			}
			if *got != tt.want {
				t.Errorf("parsed %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestTokenBudgetEnforced(t *testing.T) {
	longID := strings.Repeat("x", 60)
	if _, err := ItemToken(ActionApprove, longID, 1); err == nil {
		t.Error("expected over-budget token to be rejected")
	}
}

func TestParseTokenRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"garbage",
		"rk:batch:approve",         // missing id and index
		"rk:batch:approve:b1",      // item action without index
		"rk:batch:approve:b1:zero", // non-numeric index
		"rk:batch:approve:b1:0",    // index below 1
		"rk:batch:apply:b1:2",      // batch action with index
		"rk:batch:unknown:b1",      // unknown action
		"other:batch:approve:b1:1", // wrong prefix
	}
	for _, raw := range bad {
		if _, err := ParseToken(raw); err == nil {
			t.Errorf("ParseToken(%q) accepted malformed token", raw)
		}
	}
}

func TestBotNotifierSendsInlineKeyboard(t *testing.T) {
	var captured struct {
		ChatID      string `json:"chat_id"`
		Text        string `json:"text"`
		ReplyMarkup struct {
			InlineKeyboard [][]struct {
				Text         string `json:"text"`
				CallbackData string `json:"callback_data"`
			} `json:"inline_keyboard"`
		} `json:"reply_markup"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bottest-token/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n, err := NewBotNotifier("test-token", "chat-42", zap.NewNop(), WithBaseURL(server.URL))
	if err != nil {
		t.Fatal(err)
	}

	buttons := []Button{
		{Label: "Approve", CallbackToken: "rk:batch:approve:b1:1"},
		{Label: "Reject", CallbackToken: "rk:batch:reject:b1:1"},
	}
	if err := n.SendMessage(context.Background(), "Proposed change 1 of 2", buttons); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if captured.ChatID != "chat-42" {
		t.Errorf("chat_id = %q", captured.ChatID)
	}
	if len(captured.ReplyMarkup.InlineKeyboard) != 2 {
		t.Fatalf("keyboard rows = %d, want 2", len(captured.ReplyMarkup.InlineKeyboard))
	}
	first := captured.ReplyMarkup.InlineKeyboard[0][0]
	if first.Text != "Approve" || first.CallbackData != "rk:batch:approve:b1:1" {
		t.Errorf("first button = %+v", first)
	}
}

func TestBotNotifierSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"description":"bot was blocked by the user"}`))
	}))
	defer server.Close()

	n, err := NewBotNotifier("test-token", "chat-42", zap.NewNop(), WithBaseURL(server.URL))
	if err != nil {
		t.Fatal(err)
	}

	err = n.SendMessage(context.Background(), "hello", nil)
	if err == nil || !strings.Contains(err.Error(), "blocked") {
		t.Fatalf("err = %v, want API error description", err)
	}
}

func TestNewBotNotifierRequiresCredentials(t *testing.T) {
	if _, err := NewBotNotifier("", "chat", zap.NewNop()); err == nil {
		t.Error("missing token accepted")
	}
	if _, err := NewBotNotifier("token", "", zap.NewNop()); err == nil {
		t.Error("missing chat id accepted")
	}
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLogNotifier(zap.NewNop())
	if err := n.SendMessage(context.Background(), "text", []Button{{Label: "A", CallbackToken: "t"}}); err != nil {
		t.Errorf("SendMessage: %v", err)
	}
}
