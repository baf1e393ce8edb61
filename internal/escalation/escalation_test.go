package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bookline/bookline/internal/models"
	"github.com/bookline/bookline/internal/store"
)

type stubGenAI struct {
	response string
	err      error
}

func (s *stubGenAI) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int64) (string, error) {
	return s.response, s.err
}

func (s *stubGenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, errors.New("not implemented")
}

type recordedSend struct {
	ChannelID string
	To        string
	Text      string
}

type fakeSender struct {
	sends    []recordedSend
	failNext bool
}

func (f *fakeSender) SendFreeform(ctx context.Context, channelID, to, text string) error {
	if f.failNext {
		f.failNext = false
		return errors.New("send failed")
	}
	f.sends = append(f.sends, recordedSend{ChannelID: channelID, To: to, Text: text})
	return nil
}

func TestAnalyzeEscalatesOnHumanRequest(t *testing.T) {
	analyzer := NewAnalyzer(&stubGenAI{response: `{"escalate": true, "reason": "human_request", "summary_for_agent": "Customer asked for a human."}`})
	result := analyzer.Analyze(context.Background(), "I want to speak to a person", nil)
	if !result.Escalate {
		t.Fatal("expected escalation")
	}
	if result.Reason != models.EscalationReasonHumanRequest {
		t.Errorf("reason = %s, want human_request", result.Reason)
	}
	if result.Summary == "" {
		t.Error("expected a summary for the agent")
	}
}

func TestAnalyzeFailsClosed(t *testing.T) {
	cases := []struct {
		name string
		stub *stubGenAI
	}{
		{"model error", &stubGenAI{err: errors.New("model down")}},
		{"malformed output", &stubGenAI{response: "I think this should escalate"}},
		{"unknown reason", &stubGenAI{response: `{"escalate": true, "reason": "vibes"}`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := NewAnalyzer(tc.stub).Analyze(context.Background(), "hello", nil)
			if result.Escalate {
				t.Error("expected no escalation")
			}
			if result.Reason != models.EscalationReasonNone {
				t.Errorf("reason = %s, want none", result.Reason)
			}
		})
	}
}

func TestAnalyzeClearsSummaryWhenNotEscalating(t *testing.T) {
	analyzer := NewAnalyzer(&stubGenAI{response: `{"escalate": false, "reason": "none", "summary_for_agent": "leftover"}`})
	result := analyzer.Analyze(context.Background(), "what time do you open?", nil)
	if result.Escalate || result.Summary != "" {
		t.Errorf("expected empty non-escalating result, got %+v", result)
	}
}

func TestIsTakeoverCommand(t *testing.T) {
	cases := []struct {
		text    string
		payload string
		want    bool
	}{
		{"return control to bot", "", true},
		{"  Return To Bot  ", "", true},
		{"ok, back to bot now", "", true},
		{"end proxy", "", true},
		{"stop proxy", "", true},
		{"bot takeover", "", true},
		{"", TakeoverButtonPayload, true},
		{"the customer wants a refund", "", false},
		{"robot", "", false},
		{"", "some_other_button", false},
	}
	for _, tc := range cases {
		if got := IsTakeoverCommand(tc.text, tc.payload); got != tc.want {
			t.Errorf("IsTakeoverCommand(%q, %q) = %v, want %v", tc.text, tc.payload, got, tc.want)
		}
	}
}

func TestCreateSessionPersistsNotificationAndSession(t *testing.T) {
	st := store.NewInMemoryStore()
	manager := NewManager(st)

	session, err := manager.CreateSession("biz1", "chan1", "+1admin", "+1customer", "Customer asked for a human.")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.SessionID == "" || !session.IsActive {
		t.Fatalf("unexpected session %+v", session)
	}

	n, err := st.GetNotification(session.NotificationID)
	if err != nil || n == nil {
		t.Fatalf("escalation notification not persisted: %v", err)
	}
	if n.Status != models.NotificationStatusProxyMode {
		t.Errorf("notification status = %s, want proxy_mode", n.Status)
	}
	if n.NotificationType != models.NotificationTypeEscalation {
		t.Errorf("notification type = %s, want escalation", n.NotificationType)
	}

	got, err := manager.ActiveByCustomer("+1customer")
	if err != nil || got == nil {
		t.Fatalf("expected active session for customer, got %v (%v)", got, err)
	}
}

func TestEndSessionIsIdempotent(t *testing.T) {
	st := store.NewInMemoryStore()
	manager := NewManager(st)
	session, err := manager.CreateSession("biz1", "chan1", "+1admin", "+1customer", "summary")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	ended, err := manager.EndSession(session.SessionID)
	if err != nil || !ended {
		t.Fatalf("first end: ended=%v err=%v", ended, err)
	}
	n, _ := st.GetNotification(session.NotificationID)
	if n.Status != models.NotificationStatusResolved {
		t.Errorf("notification status = %s, want resolved", n.Status)
	}

	ended, err = manager.EndSession(session.SessionID)
	if err != nil {
		t.Fatalf("second end errored: %v", err)
	}
	if ended {
		t.Error("second end reported ended=true")
	}

	ended, err = manager.EndSession("no-such-session")
	if err != nil || ended {
		t.Errorf("unknown session: ended=%v err=%v, want false/nil", ended, err)
	}
}

func TestSessionExpiresLazily(t *testing.T) {
	st := store.NewInMemoryStore()
	manager := NewManager(st)
	session, err := manager.CreateSession("biz1", "chan1", "+1admin", "+1customer", "summary")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	manager.now = func() time.Time { return time.Now().Add(models.ProxySessionDuration + time.Minute) }

	got, err := manager.ActiveByAdmin("+1admin")
	if err != nil {
		t.Fatalf("ActiveByAdmin failed: %v", err)
	}
	if got != nil {
		t.Error("expired session still reported active")
	}
	n, _ := st.GetNotification(session.NotificationID)
	if n.Status != models.NotificationStatusResolved {
		t.Errorf("expired session notification = %s, want resolved", n.Status)
	}
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	st := store.NewInMemoryStore()
	manager := NewManager(st)

	s1, err := manager.CreateSession("biz1", "chan1", "+1admin1", "+1customer1", "first")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	s2, err := manager.CreateSession("biz1", "chan1", "+1admin2", "+1customer2", "second")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err := manager.EndSession(s1.SessionID); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	got, err := manager.ActiveByCustomer("+1customer2")
	if err != nil || got == nil {
		t.Fatalf("second session should stay active, got %v (%v)", got, err)
	}
	if got.SessionID != s2.SessionID {
		t.Errorf("ActiveByCustomer returned %s, want %s", got.SessionID, s2.SessionID)
	}
	if ended, _ := manager.ActiveByCustomer("+1customer1"); ended != nil {
		t.Error("first session still active after end")
	}
}

func TestRouteRelaysAdminToCustomer(t *testing.T) {
	st := store.NewInMemoryStore()
	manager := NewManager(st)
	sender := &fakeSender{}
	router := NewRouter(manager, sender)
	if _, err := manager.CreateSession("biz1", "chan1", "+1admin", "+1customer", "summary"); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	result, err := router.Route(context.Background(), InboundProxyMessage{From: "+1admin", Text: "We'll fit you in at 3pm."}, "chan1")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if !result.WasHandled || !result.MessageForwarded {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(sender.sends) != 1 || sender.sends[0].To != "+1customer" {
		t.Fatalf("unexpected relay sends %+v", sender.sends)
	}
}

func TestRouteRelaysCustomerToAdmin(t *testing.T) {
	st := store.NewInMemoryStore()
	manager := NewManager(st)
	sender := &fakeSender{}
	router := NewRouter(manager, sender)
	if _, err := manager.CreateSession("biz1", "chan1", "+1admin", "+1customer", "summary"); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	result, err := router.Route(context.Background(), InboundProxyMessage{From: "+1customer", Text: "Thanks, see you then."}, "chan1")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if !result.WasHandled || !result.MessageForwarded {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(sender.sends) != 1 || sender.sends[0].To != "+1admin" {
		t.Fatalf("unexpected relay sends %+v", sender.sends)
	}
}

func TestRouteTakeoverEndsSessionDespiteConfirmationFailure(t *testing.T) {
	st := store.NewInMemoryStore()
	manager := NewManager(st)
	sender := &fakeSender{failNext: true}
	router := NewRouter(manager, sender)
	session, err := manager.CreateSession("biz1", "chan1", "+1admin", "+1customer", "summary")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	result, err := router.Route(context.Background(), InboundProxyMessage{From: "+1admin", Text: "back to bot"}, "chan1")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if !result.WasHandled || !result.ProxyEnded {
		t.Fatalf("unexpected result %+v", result)
	}
	if got, _ := manager.ActiveBySessionID(session.SessionID); got != nil {
		t.Error("session still active after takeover")
	}
}

func TestRoutePassesThroughWithoutSession(t *testing.T) {
	router := NewRouter(NewManager(store.NewInMemoryStore()), &fakeSender{})
	result, err := router.Route(context.Background(), InboundProxyMessage{From: "+1someone", Text: "hi"}, "chan1")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if result.WasHandled {
		t.Error("message with no session reported as handled")
	}
}
