package usecase

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/domain/repositories"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func pngDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)
}

type fakeLLM struct {
	mu       sync.Mutex
	output   string
	err      error
	requests []repositories.GenerationRequest
}

func (f *fakeLLM) Generate(ctx context.Context, req repositories.GenerationRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.output, f.err
}

type fakeSearch struct {
	mu      sync.Mutex
	urls    map[string]string
	err     error
	queries []string
}

func (f *fakeSearch) SearchTrack(ctx context.Context, query string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return "", f.err
	}
	return f.urls[query], nil
}

type fakeUsers struct {
	mu          sync.Mutex
	byID        map[string]*entities.User
	generations map[string]int
	incErr      error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*entities.User{}, generations: map[string]int{}}
}

func (f *fakeUsers) Create(ctx context.Context, user *entities.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == user.Email {
			return repositories.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	copied := *user
	f.byID[user.ID.Hex()] = &copied
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = entities.NormalizeEmail(email)
	for _, u := range f.byID {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUsers) UpdateProfile(ctx context.Context, id string, update entities.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Avatar != nil {
		u.Avatar = *update.Avatar
	}
	if update.Preferences != nil {
		u.Preferences = *update.Preferences
	}
	if update.Profile != nil {
		u.Profile = *update.Profile
	}
	return nil
}

func (f *fakeUsers) RecordLogin(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

func (f *fakeUsers) IncrementGenerations(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incErr != nil {
		return f.incErr
	}
	f.generations[id]++
	return nil
}

func (f *fakeUsers) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generations[id]
}

type fakeCloner struct {
	languages []string
	audio     *entities.PCMAudio
	err       error
	requests  []entities.CloneRequest
}

func (f *fakeCloner) Languages() []string { return f.languages }

func (f *fakeCloner) CloneVoice(ctx context.Context, req entities.CloneRequest) (*entities.PCMAudio, error) {
	f.requests = append(f.requests, req)
	return f.audio, f.err
}

type fakeEncoder struct {
	encoded []*entities.PCMAudio
}

func (f *fakeEncoder) EncodeWAV(pcm *entities.PCMAudio) ([]byte, error) {
	f.encoded = append(f.encoded, pcm)
	return append([]byte("RIFF"), pcm.Data...), nil
}
