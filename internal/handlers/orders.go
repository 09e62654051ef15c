package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/subnet-labs/subnet-indexer/internal/chainstate"
	"github.com/subnet-labs/subnet-indexer/internal/metrics"
	"github.com/subnet-labs/subnet-indexer/internal/models"
)

// OrderHandlers derives Order, User, and Cluster entities from the
// cluster market contract's events.
type OrderHandlers struct {
	entities *Entities
	state    chainstate.Reader
	logger   *zap.Logger
}

// NewOrderHandlers creates the order/cluster handler group.
func NewOrderHandlers(entities *Entities, state chainstate.Reader, logger *zap.Logger) *OrderHandlers {
	return &OrderHandlers{
		entities: entities,
		state:    state,
		logger:   logger,
	}
}

// HandleOrderCreated records a new order. The event only carries the
// order id and the buyer, so the full record comes from the chain-gateway;
// if that read fails the order is still written with zero-valued
// resource and payment fields.
func (h *OrderHandlers) HandleOrderCreated(ctx context.Context, evt *models.Event) error {
	var p models.OrderCreatedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	if _, err := h.entities.Users.GetOrCreate(ctx, p.User, func(u *models.User) {
		u.ID = p.User
		u.Address = p.User
	}); err != nil {
		return err
	}

	order := &models.Order{
		ID:        p.OrderID,
		User:      p.User,
		Status:    models.OrderStatusPending,
		CreatedAt: evt.Timestamp,
	}

	state, ok, err := h.state.Order(ctx, evt.Source, p.OrderID)
	if err != nil {
		metrics.AuxReadFailuresTotal.Inc()
		h.logger.Warn("Order state lookup failed, storing order with defaults",
			zap.String("order_id", p.OrderID), zap.Error(err))
	}
	if ok {
		if status, known := models.OrderStatusFromCode(state.StatusCode); known {
			order.Status = status
		}
		if orderType, known := models.OrderTypeFromCode(state.OrderTypeCode); known {
			order.OrderType = orderType
		} else {
			h.logger.Warn("Unrecognized order type code",
				zap.String("order_id", p.OrderID), zap.Int("code", state.OrderTypeCode))
		}
		order.IP = state.IP
		order.Resources = state.Resources
		order.RentalDuration = state.RentalDuration
		order.PaymentToken = state.PaymentToken
		order.Cluster = state.ClusterID
		order.PaidAmount = state.PaidAmount
		order.DiscountAmount = state.DiscountAmount
	}

	return h.entities.Orders.Put(ctx, p.OrderID, order)
}

// HandleOrderConfirmed transitions an order to Confirmed and applies the
// side effect its type dictates. An order already in a terminal state is
// left untouched so stale or duplicate confirmations cannot rewrite
// timestamps.
func (h *OrderHandlers) HandleOrderConfirmed(ctx context.Context, evt *models.Event) error {
	var p models.OrderConfirmedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	order, ok, err := h.entities.Orders.Get(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "order_confirmed", CollectionOrders, p.OrderID)
		return nil
	}
	if order.Status.Terminal() {
		h.logger.Debug("Order already terminal, ignoring confirmation",
			zap.String("order_id", p.OrderID), zap.String("status", string(order.Status)))
		return nil
	}

	order.Status = models.OrderStatusConfirmed
	order.ConfirmedAt = evt.Timestamp
	if err := h.entities.Orders.Put(ctx, p.OrderID, order); err != nil {
		return err
	}

	switch order.OrderType {
	case models.OrderTypeNew:
		return h.createClusterFromOrder(ctx, evt, order)
	case models.OrderTypeRenew:
		return h.renewCluster(ctx, order)
	case models.OrderTypeUpgrade:
		return h.upgradeCluster(ctx, order)
	default:
		h.logger.Warn("Confirmed order has no recognized type, skipping side effect",
			zap.String("order_id", p.OrderID))
		return nil
	}
}

// HandleOrderCanceled transitions an order to Canceled. Terminal orders
// are left untouched.
func (h *OrderHandlers) HandleOrderCanceled(ctx context.Context, evt *models.Event) error {
	var p models.OrderCanceledPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	order, ok, err := h.entities.Orders.Get(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "order_canceled", CollectionOrders, p.OrderID)
		return nil
	}
	if order.Status.Terminal() {
		h.logger.Debug("Order already terminal, ignoring cancellation",
			zap.String("order_id", p.OrderID), zap.String("status", string(order.Status)))
		return nil
	}

	order.Status = models.OrderStatusCanceled
	order.CanceledAt = evt.Timestamp
	return h.entities.Orders.Put(ctx, p.OrderID, order)
}

// createClusterFromOrder provisions (or replaces) the cluster a New order
// paid for. The authoritative cluster record comes from the chain-gateway;
// when that read fails the order's own resource spec is used so the
// cluster still materializes.
func (h *OrderHandlers) createClusterFromOrder(ctx context.Context, evt *models.Event, order *models.Order) error {
	if order.Cluster == "" {
		h.logger.Warn("New order confirmed without a cluster id, skipping cluster creation",
			zap.String("order_id", order.ID))
		return nil
	}

	cluster := &models.Cluster{
		ID:         order.Cluster,
		Renter:     order.User,
		Active:     true,
		Expiration: evt.Timestamp + order.RentalDuration,
		IP:         order.IP,
		Resources:  order.Resources,
	}

	state, ok, err := h.state.Cluster(ctx, evt.Source, order.Cluster)
	if err != nil {
		metrics.AuxReadFailuresTotal.Inc()
		h.logger.Warn("Cluster state lookup failed, deriving cluster from order",
			zap.String("cluster_id", order.Cluster), zap.Error(err))
	}
	if ok {
		cluster.NodeIPs = state.NodeIPs
		cluster.Active = state.Active
		cluster.Expiration = state.Expiration
		cluster.IP = state.IP
		cluster.Resources = state.Resources
	}

	return h.entities.Clusters.Put(ctx, order.Cluster, cluster)
}

// renewCluster extends the cluster's expiration by the order's rental
// duration. Missing cluster: silent no-op.
func (h *OrderHandlers) renewCluster(ctx context.Context, order *models.Order) error {
	if order.Cluster == "" {
		return nil
	}
	cluster, ok, err := h.entities.Clusters.Get(ctx, order.Cluster)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "order_renew", CollectionClusters, order.Cluster)
		return nil
	}
	cluster.Expiration += order.RentalDuration
	return h.entities.Clusters.Put(ctx, order.Cluster, cluster)
}

// upgradeCluster adds the order's resources onto the cluster, dimension
// by dimension. Missing cluster: silent no-op.
func (h *OrderHandlers) upgradeCluster(ctx context.Context, order *models.Order) error {
	if order.Cluster == "" {
		return nil
	}
	cluster, ok, err := h.entities.Clusters.Get(ctx, order.Cluster)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "order_upgrade", CollectionClusters, order.Cluster)
		return nil
	}
	cluster.Resources = cluster.Resources.Add(order.Resources)
	return h.entities.Clusters.Put(ctx, order.Cluster, cluster)
}

// HandleClusterNodesAdded appends new node addresses to the cluster,
// skipping ones already present.
func (h *OrderHandlers) HandleClusterNodesAdded(ctx context.Context, evt *models.Event) error {
	var p models.ClusterNodesAddedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	cluster, ok, err := h.entities.Clusters.Get(ctx, p.ClusterID)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "cluster_nodes_added", CollectionClusters, p.ClusterID)
		return nil
	}

	existing := make(map[string]bool, len(cluster.NodeIPs))
	for _, ip := range cluster.NodeIPs {
		existing[ip] = true
	}
	for _, ip := range p.NodeIPs {
		if !existing[ip] {
			cluster.NodeIPs = append(cluster.NodeIPs, ip)
			existing[ip] = true
		}
	}

	return h.entities.Clusters.Put(ctx, p.ClusterID, cluster)
}

// HandleClusterNodeRemoved removes one node address from the cluster.
func (h *OrderHandlers) HandleClusterNodeRemoved(ctx context.Context, evt *models.Event) error {
	var p models.ClusterNodeRemovedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	cluster, ok, err := h.entities.Clusters.Get(ctx, p.ClusterID)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "cluster_node_removed", CollectionClusters, p.ClusterID)
		return nil
	}

	filtered := cluster.NodeIPs[:0]
	for _, ip := range cluster.NodeIPs {
		if ip != p.NodeIP {
			filtered = append(filtered, ip)
		}
	}
	cluster.NodeIPs = filtered

	return h.entities.Clusters.Put(ctx, p.ClusterID, cluster)
}
