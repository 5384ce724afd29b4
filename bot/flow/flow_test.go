package flow

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"herald/bot/broadcast"
	"herald/bot/directory"
	"herald/bot/session"
	coreconfig "herald/core/config"
)

const (
	operatorID = int64(42)
	chatID     = int64(42)
	strangerID = int64(99)
)

type apiCall struct {
	to   int64
	text string
}

// fakeAPI records every Send/Edit/Delete the workflow makes.
type fakeAPI struct {
	mu     sync.Mutex
	nextID int
	sends  []apiCall
	edits  []apiCall
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id, _ := strconv.ParseInt(to.Recipient(), 10, 64)
	text, _ := what.(string)
	f.sends = append(f.sends, apiCall{to: id, text: text})
	return &tele.Message{ID: f.nextID, Chat: &tele.Chat{ID: id}}, nil
}

func (f *fakeAPI) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgID, cID := msg.MessageSig()
	id, _ := strconv.Atoi(msgID)
	text, _ := what.(string)
	f.edits = append(f.edits, apiCall{to: cID, text: text})
	return &tele.Message{ID: id, Chat: &tele.Chat{ID: cID}}, nil
}

func (f *fakeAPI) Delete(msg tele.Editable) error { return nil }

func (f *fakeAPI) lastEdit() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return ""
	}
	return f.edits[len(f.edits)-1].text
}

func (f *fakeAPI) counts() (sends, edits int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends), len(f.edits)
}

type fakeDirectory struct {
	groups  []directory.Group
	members map[int64][]directory.Member
}

func (d *fakeDirectory) EligibleGroups(ctx context.Context, minMembers int) ([]directory.Group, error) {
	var out []directory.Group
	for _, g := range d.groups {
		if g.MemberCount >= minMembers {
			out = append(out, g)
		}
	}
	return out, nil
}

func (d *fakeDirectory) GroupByID(ctx context.Context, id int64) (*directory.Group, error) {
	for _, g := range d.groups {
		if g.ID == id {
			cp := g
			return &cp, nil
		}
	}
	return nil, directory.ErrGroupNotFound
}

func (d *fakeDirectory) Members(ctx context.Context, groupID int64) ([]directory.Member, error) {
	return d.members[groupID], nil
}

type fanoutCall struct {
	members []directory.Member
	text    string
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []fanoutCall
	res   broadcast.Result
}

func (b *fakeBroadcaster) Run(ctx context.Context, members []directory.Member, text string) broadcast.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fanoutCall{members: members, text: text})
	res := b.res
	res.Delivered = members
	return res
}

// fakeCtx implements the slice of tele.Context the workflow touches.
// Everything else panics through the embedded nil interface.
type fakeCtx struct {
	tele.Context
	bot     *tele.Bot
	sender  *tele.User
	chat    *tele.Chat
	text    string
	cb      *tele.Callback
	kv      map[string]interface{}
	deleted bool
}

func (c *fakeCtx) Bot() tele.API       { return c.bot }
func (c *fakeCtx) Update() tele.Update { return tele.Update{ID: 1} }
func (c *fakeCtx) Sender() *tele.User  { return c.sender }
func (c *fakeCtx) Chat() *tele.Chat    { return c.chat }
func (c *fakeCtx) Recipient() tele.Recipient {
	return c.chat
}
func (c *fakeCtx) Text() string             { return c.text }
func (c *fakeCtx) Callback() *tele.Callback { return c.cb }
func (c *fakeCtx) Delete() error {
	c.deleted = true
	return nil
}

func (c *fakeCtx) Set(key string, v interface{}) {
	if c.kv == nil {
		c.kv = make(map[string]interface{})
	}
	c.kv[key] = v
}

func (c *fakeCtx) Get(key string) interface{} {
	return c.kv[key]
}

// stubTransport answers every Bot API call with a canned success so
// notice sends made through the real client do not hit the network.
type stubTransport struct{}

func (stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body := `{"ok":true,"result":true}`
	if strings.Contains(req.URL.Path, "sendMessage") {
		body = `{"ok":true,"result":{"message_id":900,"chat":{"id":42,"type":"private"},"date":1}}`
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}, nil
}

func newTestBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{
		Token:   "42:TEST",
		Offline: true,
		Client:  &http.Client{Transport: stubTransport{}},
	})
	if err != nil {
		t.Fatalf("test bot: %v", err)
	}
	return b
}

func testConfig() coreconfig.BroadcastConfig {
	return coreconfig.BroadcastConfig{
		SupportGroup:    "support",
		MinGroupMembers: 2,
		Workers:         2,
		RatePerSec:      1000,
		ReportChunkSize: 25,
	}
}

func testMembers(n int) []directory.Member {
	out := make([]directory.Member, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, directory.Member{UserID: int64(1000 + i), Username: fmt.Sprintf("m%d", i)})
	}
	return out
}

type fixture struct {
	flow  *Flow
	api   *fakeAPI
	bcast *fakeBroadcaster
	bot   *tele.Bot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := &fakeDirectory{
		groups: []directory.Group{
			{ID: 1, Handle: "devs", Title: "Developers", MemberCount: 3},
			{ID: 2, Handle: "ops", Title: "Operations", MemberCount: 5},
			{ID: 3, Handle: "tiny", Title: "Tiny", MemberCount: 1},
		},
		members: map[int64][]directory.Member{
			1: testMembers(3),
			2: testMembers(5),
		},
	}
	api := &fakeAPI{}
	bcast := &fakeBroadcaster{}
	f := New(Options{
		Store:       session.NewStore(),
		Directory:   dir,
		Broadcaster: bcast,
		Config:      testConfig(),
	})
	f.Bind(api)
	return &fixture{flow: f, api: api, bcast: bcast, bot: newTestBot(t)}
}

func (fx *fixture) commandCtx(text string) *fakeCtx {
	return &fakeCtx{
		bot:    fx.bot,
		sender: &tele.User{ID: operatorID},
		chat:   &tele.Chat{ID: chatID},
		text:   text,
	}
}

func (fx *fixture) callbackCtx(from int64, unique string, a Action) *fakeCtx {
	return &fakeCtx{
		bot:    fx.bot,
		sender: &tele.User{ID: from},
		chat:   &tele.Chat{ID: chatID},
		cb:     &tele.Callback{Unique: unique, Data: a.Encode()},
	}
}

func (fx *fixture) startAndSelect(t *testing.T) {
	t.Helper()
	if err := fx.flow.StartCommand(fx.commandCtx("/message hello team")); err != nil {
		t.Fatalf("StartCommand: %v", err)
	}
	cb := fx.callbackCtx(operatorID, CallbackGroupSelect, Action{OperatorID: operatorID, GroupID: 1})
	if err := fx.flow.SelectGroupCallback(cb); err != nil {
		t.Fatalf("SelectGroupCallback: %v", err)
	}
}

func (fx *fixture) waitSessionGone(t *testing.T) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for fx.flow.Store().Has(operatorID) {
		select {
		case <-deadline:
			t.Fatal("session still present after fan-out")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartCreatesSessionAndPicker(t *testing.T) {
	fx := newFixture(t)

	if err := fx.flow.StartCommand(fx.commandCtx("/message hello team")); err != nil {
		t.Fatalf("StartCommand: %v", err)
	}

	s, ok := fx.flow.Store().Get(operatorID)
	if !ok {
		t.Fatal("no session after /message")
	}
	if s.State != session.AwaitingGroupSelection {
		t.Fatalf("state = %v, want awaiting group selection", s.State)
	}
	if s.MessageText != "hello team" {
		t.Fatalf("MessageText = %q", s.MessageText)
	}
	if s.Preview.MessageID == "" || s.Preview.ChatID != chatID {
		t.Fatalf("preview handle not captured: %+v", s.Preview)
	}
	if sends, _ := fx.api.counts(); sends != 1 {
		t.Fatalf("picker sends = %d, want 1", sends)
	}
}

func TestStartRejectsSecondSession(t *testing.T) {
	fx := newFixture(t)
	if err := fx.flow.StartCommand(fx.commandCtx("/message first")); err != nil {
		t.Fatalf("StartCommand: %v", err)
	}

	if err := fx.flow.StartCommand(fx.commandCtx("/message second")); err != nil {
		t.Fatalf("second StartCommand: %v", err)
	}

	s, _ := fx.flow.Store().Get(operatorID)
	if s.MessageText != "first" {
		t.Fatalf("existing session was replaced: %q", s.MessageText)
	}
	if fx.flow.Store().Len() != 1 {
		t.Fatalf("sessions = %d, want 1", fx.flow.Store().Len())
	}
}

func TestStartWithoutContentLeavesNoSession(t *testing.T) {
	fx := newFixture(t)
	if err := fx.flow.StartCommand(fx.commandCtx("/message")); err != nil {
		t.Fatalf("StartCommand: %v", err)
	}
	if fx.flow.Store().Has(operatorID) {
		t.Fatal("session created for empty content")
	}
}

func TestStartNoEligibleGroupsLeavesNoSession(t *testing.T) {
	fx := newFixture(t)
	fx.flow.dir = &fakeDirectory{groups: []directory.Group{{ID: 3, Handle: "tiny", Title: "Tiny", MemberCount: 1}}}

	if err := fx.flow.StartCommand(fx.commandCtx("/message hello")); err != nil {
		t.Fatalf("StartCommand: %v", err)
	}
	if fx.flow.Store().Has(operatorID) {
		t.Fatal("session created with no eligible groups")
	}
	if sends, _ := fx.api.counts(); sends != 0 {
		t.Fatalf("picker sent despite no eligible groups")
	}
}

func TestSelectGroupRendersPreview(t *testing.T) {
	fx := newFixture(t)
	fx.startAndSelect(t)

	s, _ := fx.flow.Store().Get(operatorID)
	if s.State != session.AwaitingConfirmation {
		t.Fatalf("state = %v, want awaiting confirmation", s.State)
	}
	if s.Group == nil || s.Group.ID != 1 {
		t.Fatalf("group not stored: %+v", s.Group)
	}
	if got := fx.api.lastEdit(); !strings.Contains(got, "hello team") {
		t.Fatalf("preview does not carry the message text: %q", got)
	}
}

func TestForeignPressIsIgnored(t *testing.T) {
	fx := newFixture(t)
	if err := fx.flow.StartCommand(fx.commandCtx("/message hello team")); err != nil {
		t.Fatalf("StartCommand: %v", err)
	}
	_, editsBefore := fx.api.counts()

	cb := fx.callbackCtx(strangerID, CallbackGroupSelect, Action{OperatorID: operatorID, GroupID: 1})
	if err := fx.flow.SelectGroupCallback(cb); err != nil {
		t.Fatalf("SelectGroupCallback: %v", err)
	}

	s, _ := fx.flow.Store().Get(operatorID)
	if s.State != session.AwaitingGroupSelection {
		t.Fatalf("foreign press advanced the session to %v", s.State)
	}
	if _, edits := fx.api.counts(); edits != editsBefore {
		t.Fatal("foreign press touched the live view")
	}
}

func TestEditConsumesExactlyOneMessage(t *testing.T) {
	fx := newFixture(t)
	fx.startAndSelect(t)

	cb := fx.callbackCtx(operatorID, CallbackEdit, Action{OperatorID: operatorID})
	if err := fx.flow.EditCallback(cb); err != nil {
		t.Fatalf("EditCallback: %v", err)
	}
	if !fx.flow.Collecting(operatorID) {
		t.Fatal("flow not collecting after edit request")
	}

	msg := fx.commandCtx("replacement text")
	if err := fx.flow.Collect(msg); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !msg.deleted {
		t.Fatal("triggering message was not deleted")
	}

	s, _ := fx.flow.Store().Get(operatorID)
	if s.MessageText != "replacement text" {
		t.Fatalf("MessageText = %q", s.MessageText)
	}
	if s.State != session.AwaitingConfirmation {
		t.Fatalf("state = %v, want awaiting confirmation", s.State)
	}
	if fx.flow.Collecting(operatorID) {
		t.Fatal("still collecting after one message was consumed")
	}
	if got := fx.api.lastEdit(); !strings.Contains(got, "replacement text") {
		t.Fatalf("preview not re-rendered with new text: %q", got)
	}
}

func TestEditIgnoresOtherChats(t *testing.T) {
	fx := newFixture(t)
	fx.startAndSelect(t)
	cb := fx.callbackCtx(operatorID, CallbackEdit, Action{OperatorID: operatorID})
	if err := fx.flow.EditCallback(cb); err != nil {
		t.Fatalf("EditCallback: %v", err)
	}

	msg := fx.commandCtx("from elsewhere")
	msg.chat = &tele.Chat{ID: chatID + 1}
	if err := fx.flow.Collect(msg); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if msg.deleted {
		t.Fatal("message in another chat was consumed")
	}
	if !fx.flow.Collecting(operatorID) {
		t.Fatal("edit no longer pending after foreign-chat message")
	}
}

func TestEditTimeoutFallsBackToPreview(t *testing.T) {
	fx := newFixture(t)
	fx.startAndSelect(t)
	cb := fx.callbackCtx(operatorID, CallbackEdit, Action{OperatorID: operatorID})
	if err := fx.flow.EditCallback(cb); err != nil {
		t.Fatalf("EditCallback: %v", err)
	}

	fx.flow.editTimedOut(operatorID)

	s, _ := fx.flow.Store().Get(operatorID)
	if s.State != session.AwaitingConfirmation {
		t.Fatalf("state after timeout = %v, want awaiting confirmation", s.State)
	}
	if s.MessageText != "hello team" {
		t.Fatalf("timeout changed the text: %q", s.MessageText)
	}
	if got := fx.api.lastEdit(); !strings.Contains(got, "hello team") {
		t.Fatalf("preview not restored after timeout: %q", got)
	}
}

func TestConfirmRunsFanoutAndReports(t *testing.T) {
	fx := newFixture(t)
	fx.startAndSelect(t)

	cb := fx.callbackCtx(operatorID, CallbackConfirm, Action{OperatorID: operatorID})
	if err := fx.flow.ConfirmCallback(cb); err != nil {
		t.Fatalf("ConfirmCallback: %v", err)
	}
	fx.waitSessionGone(t)

	fx.bcast.mu.Lock()
	calls := fx.bcast.calls
	fx.bcast.mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("fan-out calls = %d, want 1", len(calls))
	}
	if calls[0].text != "hello team" {
		t.Fatalf("fan-out text = %q", calls[0].text)
	}
	if len(calls[0].members) != 3 {
		t.Fatalf("fan-out members = %d, want 3", len(calls[0].members))
	}

	report := fx.api.lastEdit()
	if !strings.Contains(report, "Delivered: 3") || !strings.Contains(report, "hello team") {
		t.Fatalf("report = %q", report)
	}
}

func TestConfirmWithoutGroupEndsSession(t *testing.T) {
	fx := newFixture(t)
	fx.flow.Store().Set(operatorID, &session.Session{
		OperatorID:  operatorID,
		ChatID:      chatID,
		MessageText: "orphan",
		State:       session.AwaitingConfirmation,
		Preview:     session.Preview{ChatID: chatID, MessageID: "5"},
	})

	cb := fx.callbackCtx(operatorID, CallbackConfirm, Action{OperatorID: operatorID})
	if err := fx.flow.ConfirmCallback(cb); err != nil {
		t.Fatalf("ConfirmCallback: %v", err)
	}
	if fx.flow.Store().Has(operatorID) {
		t.Fatal("session survived a confirm without a group")
	}
	if _, edits := fx.api.counts(); edits != 1 {
		t.Fatalf("edits = %d, want the single error view", edits)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	fx.startAndSelect(t)

	cb := fx.callbackCtx(operatorID, CallbackCancel, Action{OperatorID: operatorID})
	if err := fx.flow.CancelCallback(cb); err != nil {
		t.Fatalf("CancelCallback: %v", err)
	}
	if fx.flow.Store().Has(operatorID) {
		t.Fatal("session survived cancel")
	}
	if got := fx.api.lastEdit(); !strings.Contains(got, "cancelled") {
		t.Fatalf("live view after cancel = %q", got)
	}

	// Second press: nothing active, must not fail or recreate state.
	cb2 := fx.callbackCtx(operatorID, CallbackCancel, Action{OperatorID: operatorID})
	if err := fx.flow.CancelCallback(cb2); err != nil {
		t.Fatalf("second CancelCallback: %v", err)
	}
	if fx.flow.Store().Has(operatorID) {
		t.Fatal("cancel recreated a session")
	}
}

func TestCancelCommandWithoutSession(t *testing.T) {
	fx := newFixture(t)
	if err := fx.flow.CancelCommand(fx.commandCtx("/cancel")); err != nil {
		t.Fatalf("CancelCommand: %v", err)
	}
	if fx.flow.Store().Len() != 0 {
		t.Fatal("cancel created state")
	}
}
