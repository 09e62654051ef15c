package handlers

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/subnet-labs/subnet-indexer/internal/chainstate"
	"github.com/subnet-labs/subnet-indexer/internal/models"
	"github.com/subnet-labs/subnet-indexer/internal/store"
)

type testEnv struct {
	kv       *store.MemoryKV
	entities *Entities
	state    *chainstate.Static
	logger   *zap.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	kv := store.NewMemoryKV()
	return &testEnv{
		kv:       kv,
		entities: NewEntities(kv),
		state: &chainstate.Static{
			Orders:    make(map[string]*chainstate.OrderState),
			Clusters:  make(map[string]*chainstate.ClusterState),
			Providers: make(map[string]*chainstate.ProviderState),
			Machines:  make(map[string]*chainstate.MachineState),
			Apps:      make(map[string]*chainstate.AppState),
		},
		logger: zap.NewNop(),
	}
}

func (e *testEnv) orders() *OrderHandlers {
	return NewOrderHandlers(e.entities, e.state, e.logger)
}

func (e *testEnv) providers() *ProviderHandlers {
	return NewProviderHandlers(e.entities, e.state, e.logger)
}

func (e *testEnv) machines() *MachineHandlers {
	return NewMachineHandlers(e.entities, e.state, e.logger)
}

func (e *testEnv) usage() *UsageHandlers {
	return NewUsageHandlers(e.entities, e.state, e.logger)
}

func (e *testEnv) staking() *StakingHandlers {
	return NewStakingHandlers(e.entities, e.logger)
}

func makeEvent(t *testing.T, id, eventType string, ts int64, payload interface{}) *models.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return &models.Event{
		ID:        id,
		Type:      eventType,
		Timestamp: ts,
		Payload:   data,
	}
}
