package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/subnet-labs/subnet-indexer/internal/chainstate"
	"github.com/subnet-labs/subnet-indexer/internal/keys"
	"github.com/subnet-labs/subnet-indexer/internal/metadata"
	"github.com/subnet-labs/subnet-indexer/internal/metrics"
	"github.com/subnet-labs/subnet-indexer/internal/models"
)

// ProviderHandlers derives Provider and PeerNode entities from the
// provider registry contract's events.
type ProviderHandlers struct {
	entities *Entities
	state    chainstate.Reader
	logger   *zap.Logger
}

// NewProviderHandlers creates the provider handler group.
func NewProviderHandlers(entities *Entities, state chainstate.Reader, logger *zap.Logger) *ProviderHandlers {
	return &ProviderHandlers{
		entities: entities,
		state:    state,
		logger:   logger,
	}
}

// HandleProviderRegistered creates a provider with zeroed counters. A
// second registration event for an existing id is ignored so the global
// provider count stays exact.
func (h *ProviderHandlers) HandleProviderRegistered(ctx context.Context, evt *models.Event) error {
	var p models.ProviderRegisteredPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	exists, err := h.entities.Providers.Has(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	if exists {
		h.logger.Warn("Provider already registered, ignoring duplicate registration",
			zap.String("provider_id", p.ProviderID))
		return nil
	}

	if _, err := h.entities.Users.GetOrCreate(ctx, p.Owner, func(u *models.User) {
		u.ID = p.Owner
		u.Address = p.Owner
	}); err != nil {
		return err
	}

	provider := &models.Provider{
		ID:         p.ProviderID,
		Owner:      p.Owner,
		Operator:   p.Operator,
		Name:       p.Name,
		Website:    p.Website,
		Metadata:   p.Metadata,
		Registered: true,
		Active:     true,
		CreatedAt:  evt.Timestamp,
		UpdatedAt:  evt.Timestamp,
	}
	applyProviderMetadata(provider, p.Metadata)

	if err := h.entities.Providers.Put(ctx, p.ProviderID, provider); err != nil {
		return err
	}

	stats, err := h.entities.GlobalStats.GetOrCreate(ctx, models.GlobalStatsKey, func(s *models.GlobalStats) {
		s.ID = models.GlobalStatsKey
	})
	if err != nil {
		return err
	}
	stats.TotalProviders++
	stats.LastUpdatedAt = evt.Timestamp
	return h.entities.GlobalStats.Put(ctx, models.GlobalStatsKey, stats)
}

// HandleProviderUpdated refreshes a provider from the chain-gateway's
// authoritative record, since the event itself is only a notification.
func (h *ProviderHandlers) HandleProviderUpdated(ctx context.Context, evt *models.Event) error {
	var p models.ProviderUpdatedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	provider, ok, err := h.entities.Providers.Get(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "provider_updated", CollectionProviders, p.ProviderID)
		return nil
	}

	state, ok, err := h.state.Provider(ctx, evt.Source, p.ProviderID)
	if err != nil {
		metrics.AuxReadFailuresTotal.Inc()
		h.logger.Warn("Provider state lookup failed, keeping stored fields",
			zap.String("provider_id", p.ProviderID), zap.Error(err))
	}
	if ok {
		provider.Owner = state.Owner
		provider.Operator = state.Operator
		provider.Metadata = state.Metadata
		applyProviderMetadata(provider, state.Metadata)
	}

	provider.UpdatedAt = evt.Timestamp
	if err := h.entities.Providers.Put(ctx, p.ProviderID, provider); err != nil {
		return err
	}
	return writeProviderSnapshot(ctx, h.entities, provider, evt.Timestamp)
}

// HandleProviderVerified flips the verification flag.
func (h *ProviderHandlers) HandleProviderVerified(ctx context.Context, evt *models.Event) error {
	var p models.ProviderVerifiedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	provider, ok, err := h.entities.Providers.Get(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "provider_verified", CollectionProviders, p.ProviderID)
		return nil
	}

	provider.Verified = p.Verified
	provider.UpdatedAt = evt.Timestamp
	if err := h.entities.Providers.Put(ctx, p.ProviderID, provider); err != nil {
		return err
	}
	return writeProviderSnapshot(ctx, h.entities, provider, evt.Timestamp)
}

// HandleProviderReputation sets the provider's reputation score.
func (h *ProviderHandlers) HandleProviderReputation(ctx context.Context, evt *models.Event) error {
	var p models.ProviderReputationPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	provider, ok, err := h.entities.Providers.Get(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "provider_reputation", CollectionProviders, p.ProviderID)
		return nil
	}

	provider.Reputation = p.NewReputation
	provider.UpdatedAt = evt.Timestamp
	if err := h.entities.Providers.Put(ctx, p.ProviderID, provider); err != nil {
		return err
	}
	return writeProviderSnapshot(ctx, h.entities, provider, evt.Timestamp)
}

// HandleProviderDeleted soft-deletes a provider. The record stays
// queryable for its history.
func (h *ProviderHandlers) HandleProviderDeleted(ctx context.Context, evt *models.Event) error {
	var p models.ProviderDeletedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	provider, ok, err := h.entities.Providers.Get(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "provider_deleted", CollectionProviders, p.ProviderID)
		return nil
	}

	provider.Deleted = true
	provider.Active = false
	provider.UpdatedAt = evt.Timestamp
	if err := h.entities.Providers.Put(ctx, p.ProviderID, provider); err != nil {
		return err
	}
	return writeProviderSnapshot(ctx, h.entities, provider, evt.Timestamp)
}

// HandleProviderTransferred moves ownership of the provider NFT.
func (h *ProviderHandlers) HandleProviderTransferred(ctx context.Context, evt *models.Event) error {
	var p models.ProviderTransferredPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	provider, ok, err := h.entities.Providers.Get(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "provider_transferred", CollectionProviders, p.ProviderID)
		return nil
	}

	if _, err := h.entities.Users.GetOrCreate(ctx, p.To, func(u *models.User) {
		u.ID = p.To
		u.Address = p.To
	}); err != nil {
		return err
	}

	provider.Owner = p.To
	provider.UpdatedAt = evt.Timestamp
	return h.entities.Providers.Put(ctx, p.ProviderID, provider)
}

// HandlePeerRegistered records a network peer operated by a provider.
func (h *ProviderHandlers) HandlePeerRegistered(ctx context.Context, evt *models.Event) error {
	var p models.PeerRegisteredPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	exists, err := h.entities.Providers.Has(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	if !exists {
		reportMissing(h.logger, "peer_registered", CollectionProviders, p.ProviderID)
		return nil
	}

	peerKey := keys.Pair(p.ProviderID, p.PeerID)
	peer := &models.PeerNode{
		ID:       peerKey,
		Provider: p.ProviderID,
		PeerID:   p.PeerID,
		Metadata: p.Metadata,
	}
	return h.entities.Peers.Put(ctx, peerKey, peer)
}

// applyProviderMetadata merges the parseable parts of the metadata blob
// into the provider's display fields.
func applyProviderMetadata(provider *models.Provider, blob string) {
	fields := metadata.Parse(blob)
	metadata.Override(&provider.Name, fields.Name)
	metadata.Override(&provider.Description, fields.Description)
}
