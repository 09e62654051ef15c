package chainstate

import "context"

// Static is a fixed, in-memory Reader. Tests and offline replays seed it
// with the state the handlers should observe. Keys are the plain record
// ids; machines are keyed providerID+"/"+machineID. The source argument
// is ignored.
type Static struct {
	Orders    map[string]*OrderState
	Clusters  map[string]*ClusterState
	Providers map[string]*ProviderState
	Machines  map[string]*MachineState
	Apps      map[string]*AppState

	// Err, when set, is returned by every lookup. Lets tests exercise the
	// read-failure path.
	Err error
}

func (s *Static) Order(ctx context.Context, source, orderID string) (*OrderState, bool, error) {
	if s.Err != nil {
		return nil, false, s.Err
	}
	state, ok := s.Orders[orderID]
	return state, ok, nil
}

func (s *Static) Cluster(ctx context.Context, source, clusterID string) (*ClusterState, bool, error) {
	if s.Err != nil {
		return nil, false, s.Err
	}
	state, ok := s.Clusters[clusterID]
	return state, ok, nil
}

func (s *Static) Provider(ctx context.Context, source, providerID string) (*ProviderState, bool, error) {
	if s.Err != nil {
		return nil, false, s.Err
	}
	state, ok := s.Providers[providerID]
	return state, ok, nil
}

func (s *Static) Machine(ctx context.Context, source, providerID, machineID string) (*MachineState, bool, error) {
	if s.Err != nil {
		return nil, false, s.Err
	}
	state, ok := s.Machines[providerID+"/"+machineID]
	return state, ok, nil
}

func (s *Static) App(ctx context.Context, source, appID string) (*AppState, bool, error) {
	if s.Err != nil {
		return nil, false, s.Err
	}
	state, ok := s.Apps[appID]
	return state, ok, nil
}
