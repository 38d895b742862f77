// Package identity resolves and links the canonical Identity behind each
// channel account, and merges duplicate identities discovered later (§4.6).
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/pkg/models"
)

// Resolver implements resolve/link/merge against the storage layer's
// identity, memory, and session stores. Merge touches all three since an
// identity's linked accounts, memories, and sessions must all move together.
type Resolver struct {
	identities storage.IdentityStore
	memories   storage.MemoryStore
	sessions   storage.SessionStore
}

// NewResolver returns a Resolver backed by the given stores.
func NewResolver(identities storage.IdentityStore, memories storage.MemoryStore, sessions storage.SessionStore) *Resolver {
	return &Resolver{identities: identities, memories: memories, sessions: sessions}
}

// Resolve returns the identity_id linked to (channelType, platformUserID),
// creating a new identity with that single link on first sight.
func (r *Resolver) Resolve(ctx context.Context, channelType models.ChannelType, platformUserID, displayName string) (string, error) {
	link, err := r.identities.ResolveLink(ctx, channelType, platformUserID)
	if err == nil {
		return link.IdentityID, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("resolve link: %w", err)
	}

	id := &models.Identity{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		CreatedAt:   time.Now(),
	}
	if err := r.identities.Create(ctx, id); err != nil {
		return "", fmt.Errorf("create identity: %w", err)
	}

	if err := r.Link(ctx, id.ID, channelType, platformUserID, displayName); err != nil {
		return "", err
	}
	return id.ID, nil
}

// Link attaches an additional channel account to an existing identity. It
// returns storage.ErrAlreadyLinked if the platform pair is already bound to
// a different identity (§4.6).
func (r *Resolver) Link(ctx context.Context, identityID string, channelType models.ChannelType, platformUserID, displayName string) error {
	link := &models.LinkedAccount{
		ChannelType:    channelType,
		PlatformUserID: platformUserID,
		IdentityID:     identityID,
		DisplayName:    displayName,
		LinkedAt:       time.Now(),
	}
	if err := r.identities.Link(ctx, link); err != nil {
		if errors.Is(err, storage.ErrAlreadyLinked) {
			return err
		}
		return fmt.Errorf("link account: %w", err)
	}
	return nil
}

// Merge rebinds loserID's linked accounts, memories, and sessions onto
// winnerID, then tombstones loserID (§4.6). Reparenting memories and
// sessions happens before the identity-level merge so a failure midway
// leaves loserID still resolvable rather than orphaning its data under a
// half-merged identity.
func (r *Resolver) Merge(ctx context.Context, winnerID, loserID string) error {
	if winnerID == "" || loserID == "" || winnerID == loserID {
		return fmt.Errorf("invalid merge identities")
	}

	if err := r.memories.ReparentIdentity(ctx, loserID, winnerID); err != nil {
		return fmt.Errorf("reparent memories: %w", err)
	}
	if err := r.sessions.ReparentIdentity(ctx, loserID, winnerID); err != nil {
		return fmt.Errorf("reparent sessions: %w", err)
	}
	if err := r.identities.Merge(ctx, loserID, winnerID); err != nil {
		return fmt.Errorf("merge identity: %w", err)
	}
	return nil
}
