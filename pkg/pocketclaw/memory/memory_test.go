package memory

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "user_profile.json"), "+4799887766", testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.SetClock(func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	})
	return s
}

func TestDefaultMemorySeedsOwnerContact(t *testing.T) {
	s := newTestStore(t)

	m := s.Load()
	if len(m.Contacts) != 1 {
		t.Fatalf("got %d contacts, want 1", len(m.Contacts))
	}
	if m.Contacts[0].Number != "+4799887766" || m.Contacts[0].Relationship != "owner" {
		t.Errorf("owner contact = %+v", m.Contacts[0])
	}
}

func TestAddNote(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddNote("allergic to shellfish"); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := s.AddNote("   "); err != ErrEmptyNote {
		t.Errorf("blank note err = %v, want ErrEmptyNote", err)
	}

	m := s.Load()
	if len(m.Notes) != 1 || m.Notes[0].Note != "allergic to shellfish" {
		t.Errorf("notes = %+v", m.Notes)
	}
	if m.Notes[0].Timestamp.IsZero() {
		t.Error("note timestamp not set")
	}
}

func TestUpsertContact(t *testing.T) {
	s := newTestStore(t)

	created, err := s.UpsertContact(Contact{
		Number:       "+47 112 23 344",
		Name:         "Kari",
		Relationship: "boss",
	})
	if err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}
	if !created {
		t.Error("first upsert should create")
	}

	// Same number in a different format updates, never duplicates.
	created, err = s.UpsertContact(Contact{
		Number:         "4711223344",
		TonePreference: "formal",
	})
	if err != nil {
		t.Fatalf("UpsertContact update: %v", err)
	}
	if created {
		t.Error("second upsert should update, not create")
	}

	m := s.Load()
	if len(m.Contacts) != 2 {
		t.Fatalf("got %d contacts, want 2 (owner + Kari)", len(m.Contacts))
	}
	kari := m.Contacts[1]
	if kari.Name != "Kari" {
		t.Errorf("update cleared name: %+v", kari)
	}
	if kari.TonePreference != "formal" {
		t.Errorf("tone = %q, want formal", kari.TonePreference)
	}
	if kari.Relationship != "boss" {
		t.Errorf("update cleared relationship: %+v", kari)
	}
}

func TestUpsertContactRequiresNumber(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertContact(Contact{Name: "nobody"}); err != ErrMissingNumber {
		t.Errorf("err = %v, want ErrMissingNumber", err)
	}
}

func TestLookupContactMatchesAcrossFormats(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertContact(Contact{Number: "+4711223344", Name: "Kari"}); err != nil {
		t.Fatal(err)
	}

	for _, probe := range []string{"+47 11 22 33 44", "4711223344", "11223344"} {
		c, ok := s.LookupContact(probe)
		if !ok {
			t.Errorf("LookupContact(%q) found nothing", probe)
			continue
		}
		if c.Name != "Kari" {
			t.Errorf("LookupContact(%q) = %+v", probe, c)
		}
	}

	if _, ok := s.LookupContact("+15550001111"); ok {
		t.Error("unknown number matched a contact")
	}
}

func TestUpdateShortTermAccumulatesPlans(t *testing.T) {
	s := newTestStore(t)

	plan := "pick up groceries"
	if err := s.UpdateShortTerm(ShortTermUpdate{Plan: &plan}); err != nil {
		t.Fatal(err)
	}
	// Same plan again must not duplicate.
	if err := s.UpdateShortTerm(ShortTermUpdate{Plan: &plan}); err != nil {
		t.Fatal(err)
	}
	location := "office"
	if err := s.UpdateShortTerm(ShortTermUpdate{Location: &location}); err != nil {
		t.Fatal(err)
	}

	st := s.Load().ShortTerm
	if len(st.TodayPlans) != 1 {
		t.Errorf("plans = %v, want single entry", st.TodayPlans)
	}
	if st.UserLocation != "office" {
		t.Errorf("location = %q", st.UserLocation)
	}
}

func TestPromptContextSections(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertContact(Contact{
		Number:         "+4711223344",
		Name:           "Kari",
		Relationship:   "boss",
		TonePreference: "formal",
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddNote("prefers coffee black"); err != nil {
		t.Fatal(err)
	}
	activity := "commuting"
	if err := s.UpdateShortTerm(ShortTermUpdate{Activity: &activity}); err != nil {
		t.Fatal(err)
	}

	ctx := s.PromptContext()
	for _, want := range []string{
		"CONTACTS:", "Kari (boss) - tone: formal",
		"SHORT-TERM CONTEXT:", "Activity: commuting",
		"STANDING NOTES:", "prefers coffee black",
	} {
		if !strings.Contains(ctx, want) {
			t.Errorf("PromptContext missing %q:\n%s", want, ctx)
		}
	}
}

func TestDescribeSender(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertContact(Contact{Number: "+4711223344", Name: "Kari", Relationship: "boss"}); err != nil {
		t.Fatal(err)
	}

	if got := s.DescribeSender("+4711223344"); got != "Kari (boss)" {
		t.Errorf("DescribeSender = %q", got)
	}
	if got := s.DescribeSender("+15550001111"); got != "+15550001111" {
		t.Errorf("unknown sender = %q, want raw number", got)
	}
}

func TestHistoryBounds(t *testing.T) {
	log, err := NewHistoryLog(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatalf("NewHistoryLog: %v", err)
	}
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	i := 0
	log.SetClock(func() time.Time {
		i++
		return base.Add(time.Duration(i) * time.Second)
	})

	for n := 0; n < 40; n++ {
		role := "user"
		if n%2 == 1 {
			role = "assistant"
		}
		if err := log.Append(role, strings.Repeat("x", 3)); err != nil {
			t.Fatalf("Append %d: %v", n, err)
		}
	}

	all := log.All()
	if len(all) != MaxStoredEntries {
		t.Errorf("stored = %d, want %d", len(all), MaxStoredEntries)
	}
	recent := log.Recent()
	if len(recent) != ContextWindow {
		t.Errorf("recent = %d, want %d", len(recent), ContextWindow)
	}
	// Recent must be the tail of the stored log, oldest first.
	if !recent[len(recent)-1].Timestamp.Equal(all[len(all)-1].Timestamp) {
		t.Error("Recent does not end at the newest entry")
	}
	if recent[0].Timestamp.After(recent[len(recent)-1].Timestamp) {
		t.Error("Recent not ordered oldest first")
	}
}

func TestAbsorbTurn(t *testing.T) {
	t.Run("location pattern stores context snippet", func(t *testing.T) {
		s := newTestStore(t)
		if !s.AbsorbTurn("I'm at the airport waiting for the delayed flight to Bergen") {
			t.Fatal("location turn not absorbed")
		}
		st := s.Load().ShortTerm
		if !strings.HasPrefix(st.CurrentContext, "I'm at the airport") {
			t.Errorf("context = %q", st.CurrentContext)
		}
		if len(st.CurrentContext) > 50 {
			t.Errorf("context snippet too long: %d chars", len(st.CurrentContext))
		}
	})

	t.Run("plan pattern stores whole message", func(t *testing.T) {
		s := newTestStore(t)
		msg := "planning to call the dentist after lunch"
		if !s.AbsorbTurn(msg) {
			t.Fatal("plan turn not absorbed")
		}
		st := s.Load().ShortTerm
		if len(st.TodayPlans) != 1 || st.TodayPlans[0] != msg {
			t.Errorf("plans = %v", st.TodayPlans)
		}
	})

	t.Run("date mention pins current date", func(t *testing.T) {
		s := newTestStore(t)
		if !s.AbsorbTurn("remind me about the meeting tomorrow") {
			t.Fatal("date turn not absorbed")
		}
		if got := s.Load().ShortTerm.CurrentDate; got != "2025-03-10" {
			t.Errorf("current date = %q", got)
		}
	})

	t.Run("plain message absorbs nothing", func(t *testing.T) {
		s := newTestStore(t)
		if s.AbsorbTurn("what's the weather like") {
			t.Error("plain message reported as absorbed")
		}
	})
}
