package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bottomtime/domain/user"
)

type oauthKey struct {
	provider   string
	providerID string
}

// OAuthRepository provides an in-memory implementation of ports.OAuthRepository
type OAuthRepository struct {
	mu    sync.RWMutex
	links map[oauthKey]user.OAuthLink
}

// NewOAuthRepository creates an empty repository
func NewOAuthRepository() *OAuthRepository {
	return &OAuthRepository{links: make(map[oauthKey]user.OAuthLink)}
}

func (r *OAuthRepository) Create(ctx context.Context, link *user.OAuthLink) error {
	key := oauthKey{provider: link.Provider, providerID: link.ProviderID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[key]; exists {
		return fmt.Errorf("oauth link already exists: %s/%s", link.Provider, link.ProviderID)
	}
	r.links[key] = *link
	return nil
}

func (r *OAuthRepository) Get(ctx context.Context, provider, providerID string) (*user.OAuthLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[oauthKey{provider: provider, providerID: providerID}]
	if !ok {
		return nil, nil
	}
	return &link, nil
}

func (r *OAuthRepository) ListByUser(ctx context.Context, userID string) ([]*user.OAuthLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	links := make([]*user.OAuthLink, 0)
	for _, l := range r.links {
		if l.UserID == userID {
			link := l
			links = append(links, &link)
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Provider < links[j].Provider })
	return links, nil
}

func (r *OAuthRepository) Delete(ctx context.Context, provider, providerID string) error {
	r.mu.Lock()
	delete(r.links, oauthKey{provider: provider, providerID: providerID})
	r.mu.Unlock()
	return nil
}
