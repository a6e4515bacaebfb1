package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	id "eligo/pkg/domain"
	"eligo/pkg/platform/sentinel"
)

// InMemoryProvider is a development stand-in for the hosted auth service.
type InMemoryProvider struct {
	mu      sync.Mutex
	byEmail map[string]id.IdentityRef
	byRef   map[id.IdentityRef]NewIdentity
}

func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{
		byEmail: make(map[string]id.IdentityRef),
		byRef:   make(map[id.IdentityRef]NewIdentity),
	}
}

func (p *InMemoryProvider) Create(_ context.Context, req NewIdentity) (id.IdentityRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := strings.ToLower(req.Email)
	if _, exists := p.byEmail[key]; exists {
		return "", ErrEmailTaken
	}
	ref := id.IdentityRef(uuid.NewString())
	p.byEmail[key] = ref
	req.Password = ""
	p.byRef[ref] = req
	return ref, nil
}

func (p *InMemoryProvider) FindByEmail(_ context.Context, email string) (*Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ref, ok := p.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	req := p.byRef[ref]
	metadata := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	return &Identity{Ref: ref, Email: req.Email, Metadata: metadata}, nil
}

func (p *InMemoryProvider) Delete(_ context.Context, ref id.IdentityRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if req, ok := p.byRef[ref]; ok {
		delete(p.byEmail, strings.ToLower(req.Email))
		delete(p.byRef, ref)
	}
	return nil
}

// Count returns the number of live identities.
func (p *InMemoryProvider) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byRef)
}
