package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	apperrors "github.com/julianstephens/microhabits/internal/errors"
	"github.com/julianstephens/microhabits/internal/models"
)

type Store struct {
	Version  int                       `json:"version"`
	Habits   map[string]models.Habit   `json:"habits"`
	Profiles map[string]models.Profile `json:"profiles"`
}

// JSONStore keeps all data in a single JSON file that is rewritten on every mutation.
// It is safe for concurrent use within one process only.
type JSONStore struct {
	path  string
	mu    sync.Mutex
	store *Store
	// now stamps updated_at; replaced in tests
	now func() time.Time
}

func NewJSONStore(configPath string) *JSONStore {
	return &JSONStore{
		path: configPath,
		now:  time.Now,
	}
}

func (s *JSONStore) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(s.path); err == nil {
		return s.loadLocked()
	}

	s.store = &Store{
		Version:  1,
		Habits:   make(map[string]models.Habit),
		Profiles: make(map[string]models.Profile),
	}

	return s.save()
}

func (s *JSONStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		return nil
	}
	return s.loadLocked()
}

func (s *JSONStore) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("storage not initialized, run 'microhabits init' first")
		}
		return fmt.Errorf("failed to read storage: %w", err)
	}

	st := &Store{}
	if err := json.Unmarshal(data, st); err != nil {
		return fmt.Errorf("failed to parse storage: %w", err)
	}

	if st.Habits == nil {
		st.Habits = make(map[string]models.Habit)
	}
	if st.Profiles == nil {
		st.Profiles = make(map[string]models.Profile)
	}
	s.store = st

	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) GetConfigPath() string {
	return s.path
}

// save writes the whole store atomically via a temp file and rename
func (s *JSONStore) save() error {
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize storage: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}

	return nil
}

func (s *JSONStore) loaded() error {
	if s.store == nil {
		return fmt.Errorf("storage not loaded")
	}
	return nil
}

func (s *JSONStore) ListHabits(_ context.Context, owner string) ([]models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return nil, apperrors.Persistence("list habits", err)
	}

	habits := []models.Habit{}
	for _, h := range s.store.Habits {
		if h.Owner == owner {
			habits = append(habits, h)
		}
	}
	sort.Slice(habits, func(i, j int) bool {
		if habits[i].CreatedAt.Equal(habits[j].CreatedAt) {
			return habits[i].ID < habits[j].ID
		}
		return habits[i].CreatedAt.Before(habits[j].CreatedAt)
	})

	return habits, nil
}

func (s *JSONStore) GetHabit(_ context.Context, id, owner string) (models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return models.Habit{}, apperrors.Persistence("get habit", err)
	}

	h, ok := s.store.Habits[id]
	if !ok || h.Owner != owner {
		return models.Habit{}, fmt.Errorf("habit %s: %w", id, apperrors.ErrNotFound)
	}
	return h, nil
}

func (s *JSONStore) CountHabits(_ context.Context, owner string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return 0, apperrors.Persistence("count habits", err)
	}

	n := 0
	for _, h := range s.store.Habits {
		if h.Owner == owner {
			n++
		}
	}
	return n, nil
}

func (s *JSONStore) InsertHabit(_ context.Context, habit models.Habit) (models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return models.Habit{}, apperrors.Persistence("insert habit", err)
	}

	if _, exists := s.store.Habits[habit.ID]; exists {
		return models.Habit{}, apperrors.Persistence("insert habit", fmt.Errorf("habit %s already exists", habit.ID))
	}

	habit.CreatedAt = habit.CreatedAt.UTC()
	habit.UpdatedAt = s.now().UTC()
	s.store.Habits[habit.ID] = habit
	if err := s.save(); err != nil {
		delete(s.store.Habits, habit.ID)
		return models.Habit{}, apperrors.Persistence("insert habit", err)
	}

	return habit, nil
}

func (s *JSONStore) UpdateHabit(_ context.Context, id, owner string, patch models.HabitPatch) (models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return models.Habit{}, apperrors.Persistence("update habit", err)
	}

	prev, ok := s.store.Habits[id]
	if !ok || prev.Owner != owner {
		return models.Habit{}, fmt.Errorf("habit %s: %w", id, apperrors.ErrNotFound)
	}
	if patch.Expected != nil && !prev.State().Equal(*patch.Expected) {
		return models.Habit{}, fmt.Errorf("habit %s: %w", id, apperrors.ErrConflict)
	}

	next := patch.Apply(prev)
	next.UpdatedAt = s.now().UTC()
	s.store.Habits[id] = next
	if err := s.save(); err != nil {
		s.store.Habits[id] = prev
		return models.Habit{}, apperrors.Persistence("update habit", err)
	}

	return next, nil
}

func (s *JSONStore) DeleteHabit(_ context.Context, id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return apperrors.Persistence("delete habit", err)
	}

	prev, ok := s.store.Habits[id]
	if !ok || prev.Owner != owner {
		return fmt.Errorf("habit %s: %w", id, apperrors.ErrNotFound)
	}

	delete(s.store.Habits, id)
	if err := s.save(); err != nil {
		s.store.Habits[id] = prev
		return apperrors.Persistence("delete habit", err)
	}

	return nil
}

func (s *JSONStore) ResetStaleCompletions(_ context.Context, owner string, before time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return nil, apperrors.Persistence("reset stale completions", err)
	}

	prev := make(map[string]models.Habit)
	now := s.now().UTC()
	for id, h := range s.store.Habits {
		if h.Owner != owner || !h.Completed {
			continue
		}
		if h.LastCompletedAt != nil && !h.LastCompletedAt.Before(before) {
			continue
		}
		prev[id] = h
		h.Completed = false
		h.UpdatedAt = now
		s.store.Habits[id] = h
	}

	if len(prev) == 0 {
		return []string{}, nil
	}

	if err := s.save(); err != nil {
		for id, h := range prev {
			s.store.Habits[id] = h
		}
		return nil, apperrors.Persistence("reset stale completions", err)
	}

	ids := make([]string, 0, len(prev))
	for id := range prev {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *JSONStore) GetProfile(_ context.Context, owner string) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return models.Profile{}, apperrors.Persistence("get profile", err)
	}

	p, ok := s.store.Profiles[owner]
	if !ok {
		return models.Profile{ID: owner}, nil
	}
	return p, nil
}

func (s *JSONStore) SaveProfile(_ context.Context, profile models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return apperrors.Persistence("save profile", err)
	}

	prev, existed := s.store.Profiles[profile.ID]
	now := s.now().UTC()
	if existed {
		profile.CreatedAt = prev.CreatedAt
	} else if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	s.store.Profiles[profile.ID] = profile
	if err := s.save(); err != nil {
		if existed {
			s.store.Profiles[profile.ID] = prev
		} else {
			delete(s.store.Profiles, profile.ID)
		}
		return apperrors.Persistence("save profile", err)
	}

	return nil
}
