// Package memory holds what the agent knows about its owner: a profile
// document with contacts, standing notes, and short-term context, plus
// the bounded conversation history. Everything lives in small JSON files
// owned by the single runtime loop.
package memory

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jholhewres/pocketclaw/pkg/pocketclaw/storage"
)

// ErrEmptyNote is returned when a note operation carries no text.
var ErrEmptyNote = errors.New("note text is empty")

// ErrMissingNumber is returned when a contact operation has no number.
var ErrMissingNumber = errors.New("contact number is required")

// Profile describes the owner.
type Profile struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Bio    string `json:"bio"`
	Locale string `json:"locale"`
}

// Contact is a person the agent knows about, keyed by phone number.
type Contact struct {
	Name           string `json:"name"`
	Number         string `json:"number"`
	Relationship   string `json:"relationship,omitempty"`
	TonePreference string `json:"tone_preference,omitempty"`
	Context        string `json:"context,omitempty"`
}

// Preferences capture how the owner wants the agent to talk.
type Preferences struct {
	Tone          string `json:"tone"`
	ResponseStyle string `json:"response_style"`
}

// Note is a standing fact the agent was told to remember.
type Note struct {
	Note      string    `json:"note"`
	Timestamp time.Time `json:"timestamp"`
}

// ShortTerm is the rolling "right now" context: where the owner is,
// what they're doing, and what's planned for today.
type ShortTerm struct {
	CurrentContext string   `json:"current_context"`
	CurrentDate    string   `json:"current_date"`
	UserLocation   string   `json:"user_location"`
	UserActivity   string   `json:"user_activity"`
	TodayPlans     []string `json:"today_plans"`
}

// Memory is the full owner profile document.
type Memory struct {
	Profile     Profile     `json:"profile"`
	Contacts    []Contact   `json:"contacts"`
	Preferences Preferences `json:"preferences"`
	Interests   []string    `json:"interests"`
	Notes       []Note      `json:"notes"`
	ShortTerm   ShortTerm   `json:"short_term_memory"`
}

// DefaultMemory builds the initial profile document. The owner's own
// number is seeded as the first contact so tone lookups always resolve.
func DefaultMemory(ownerNumber string) Memory {
	return Memory{
		Profile: Profile{Locale: "en-US"},
		Contacts: []Contact{{
			Number:         ownerNumber,
			Relationship:   "owner",
			TonePreference: "normal",
			Context:        "This is the device owner",
		}},
		Preferences: Preferences{
			Tone:          "helpful, upbeat, a little sarcastic",
			ResponseStyle: "short and precise, delivered over SMS",
		},
		Interests: []string{},
		Notes:     []Note{},
	}
}

// Store owns the profile document on disk.
type Store struct {
	doc    *storage.Document[Memory]
	owner  string
	now    func() time.Time
	logger *slog.Logger
}

// NewStore creates a memory store at the given path. ownerNumber seeds
// the default document when the file doesn't exist yet.
func NewStore(path, ownerNumber string, logger *slog.Logger) (*Store, error) {
	doc, err := storage.NewDocument[Memory](path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		doc:    doc,
		owner:  ownerNumber,
		now:    time.Now,
		logger: logger.With("component", "memory"),
	}, nil
}

// SetClock overrides the store's time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Load returns the profile document, falling back to the default when
// the file is missing or unreadable.
func (s *Store) Load() Memory {
	return s.doc.Load(DefaultMemory(s.owner))
}

// Save writes the profile document.
func (s *Store) Save(m Memory) error {
	return s.doc.Save(m)
}

// EnsureExists writes the default document if no file is present yet.
func (s *Store) EnsureExists() error {
	if s.doc.Exists() {
		return nil
	}
	return s.Save(DefaultMemory(s.owner))
}

// AddNote appends a standing note.
func (s *Store) AddNote(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyNote
	}
	m := s.Load()
	m.Notes = append(m.Notes, Note{Note: text, Timestamp: s.now()})
	return s.Save(m)
}

// UpsertContact adds a new contact or updates the existing one with the
// same number. Only non-empty fields overwrite on update. Returns true
// when a new contact was created.
func (s *Store) UpsertContact(c Contact) (bool, error) {
	number := strings.TrimSpace(c.Number)
	if number == "" {
		return false, ErrMissingNumber
	}

	m := s.Load()
	key := normalizeNumber(number)
	for i := range m.Contacts {
		if normalizeNumber(m.Contacts[i].Number) != key {
			continue
		}
		if c.Name != "" {
			m.Contacts[i].Name = c.Name
		}
		if c.Relationship != "" {
			m.Contacts[i].Relationship = c.Relationship
		}
		if c.TonePreference != "" {
			m.Contacts[i].TonePreference = c.TonePreference
		}
		if c.Context != "" {
			m.Contacts[i].Context = c.Context
		}
		return false, s.Save(m)
	}

	if c.Name == "" {
		c.Name = number
	}
	if c.TonePreference == "" {
		c.TonePreference = "normal"
	}
	m.Contacts = append(m.Contacts, c)
	s.logger.Info("contact added", "name", c.Name)
	return true, s.Save(m)
}

// LookupContact finds a contact whose number matches the given one.
// Numbers match when either normalized form contains the other, which
// tolerates country-code prefixes the carrier adds or strips.
func (s *Store) LookupContact(number string) (Contact, bool) {
	key := normalizeNumber(number)
	if key == "" {
		return Contact{}, false
	}
	for _, c := range s.Load().Contacts {
		candidate := normalizeNumber(c.Number)
		if candidate == "" {
			continue
		}
		if strings.Contains(key, candidate) || strings.Contains(candidate, key) {
			return c, true
		}
	}
	return Contact{}, false
}

// ShortTermUpdate carries partial short-term context changes. Nil
// fields are left untouched.
type ShortTermUpdate struct {
	Context  *string
	Date     *string
	Location *string
	Activity *string
	Plan     *string
}

// UpdateShortTerm applies a partial update to the short-term context.
// Plans accumulate, deduplicated; the other fields replace.
func (s *Store) UpdateShortTerm(u ShortTermUpdate) error {
	m := s.Load()
	if u.Context != nil {
		m.ShortTerm.CurrentContext = *u.Context
	}
	if u.Date != nil {
		m.ShortTerm.CurrentDate = *u.Date
	}
	if u.Location != nil {
		m.ShortTerm.UserLocation = *u.Location
	}
	if u.Activity != nil {
		m.ShortTerm.UserActivity = *u.Activity
	}
	if u.Plan != nil && *u.Plan != "" {
		plan := *u.Plan
		exists := false
		for _, p := range m.ShortTerm.TodayPlans {
			if p == plan {
				exists = true
				break
			}
		}
		if !exists {
			m.ShortTerm.TodayPlans = append(m.ShortTerm.TodayPlans, plan)
		}
	}
	return s.Save(m)
}

// RefreshDate pins the short-term context to today. The stale entries
// from a previous day (plans, activity) stay until overwritten; the
// date alone is enough for the model to discount them.
func (s *Store) RefreshDate() error {
	date := s.now().Format("2006-01-02")
	return s.UpdateShortTerm(ShortTermUpdate{Date: &date})
}

// PromptContext renders the profile document as a compact block for the
// system prompt: contacts with tone hints, current short-term context,
// and the most recent standing notes.
func (s *Store) PromptContext() string {
	m := s.Load()
	var sections []string

	if len(m.Contacts) > 0 {
		lines := make([]string, 0, len(m.Contacts))
		for _, c := range m.Contacts {
			line := c.Name
			if line == "" {
				line = c.Number
			}
			if c.Relationship != "" {
				line += " (" + c.Relationship + ")"
			}
			if c.TonePreference != "" && c.TonePreference != "normal" {
				line += " - tone: " + c.TonePreference
			}
			if c.Context != "" {
				line += " - " + c.Context
			}
			lines = append(lines, line)
		}
		sections = append(sections, "CONTACTS:\n"+strings.Join(lines, "\n"))
	}

	if st := m.ShortTerm; st.CurrentContext != "" || st.CurrentDate != "" ||
		st.UserLocation != "" || st.UserActivity != "" || len(st.TodayPlans) > 0 {
		var lines []string
		if st.CurrentDate != "" {
			lines = append(lines, "Date: "+st.CurrentDate)
		}
		if st.CurrentContext != "" {
			lines = append(lines, "Context: "+st.CurrentContext)
		}
		if st.UserLocation != "" {
			lines = append(lines, "Location: "+st.UserLocation)
		}
		if st.UserActivity != "" {
			lines = append(lines, "Activity: "+st.UserActivity)
		}
		if len(st.TodayPlans) > 0 {
			lines = append(lines, "Plans: "+strings.Join(st.TodayPlans, ", "))
		}
		sections = append(sections, "SHORT-TERM CONTEXT:\n"+strings.Join(lines, "\n"))
	}

	if len(m.Notes) > 0 {
		recent := m.Notes
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		lines := make([]string, 0, len(recent))
		for _, n := range recent {
			lines = append(lines, n.Note)
		}
		sections = append(sections, "STANDING NOTES:\n"+strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n\n")
}

// normalizeNumber strips spaces and the plus prefix so numbers compare
// across formatting variants.
func normalizeNumber(number string) string {
	number = strings.ReplaceAll(number, " ", "")
	return strings.TrimPrefix(number, "+")
}

// DescribeSender formats a sender for owner notifications, preferring
// the contact name and relationship over the raw number.
func (s *Store) DescribeSender(number string) string {
	contact, ok := s.LookupContact(number)
	if !ok {
		return number
	}
	name := contact.Name
	if name == "" {
		name = number
	}
	if contact.Relationship != "" {
		return fmt.Sprintf("%s (%s)", name, contact.Relationship)
	}
	return name
}
