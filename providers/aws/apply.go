package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"topograph/graph"
	"topograph/state"
	"topograph/telemetry"
	"topograph/types"
)

// created tracks the cloud identifiers of one materialized resource.
type created struct {
	id    string
	vpcID string
}

// Applier walks the desired graph in topological order and issues one-shot
// create calls, threading created identifiers into later nodes' inputs.
type Applier struct {
	clients *Clients
	logger  *telemetry.Logger
	results map[string]created
}

// NewApplier creates an applier over the given clients.
func NewApplier(clients *Clients, logger *telemetry.Logger) *Applier {
	return &Applier{
		clients: clients,
		logger:  logger,
		results: make(map[string]created),
	}
}

// Seed preloads identifiers from an existing snapshot so new nodes can
// reference resources created by an earlier apply.
func (a *Applier) Seed(snapshot map[string]state.Record) {
	for key, rec := range snapshot {
		a.results[key] = created{id: rec.CloudID, vpcID: rec.VPCID}
	}
}

// Apply materializes nodes in order. Nodes must already be topologically
// sorted and filtered to the ones being created. Sequence numbers continue
// from startSeq so snapshots keep a global creation order.
func (a *Applier) Apply(ctx context.Context, nodes []graph.Node, startSeq int) ([]state.Record, error) {
	records := make([]state.Record, 0, len(nodes))

	for i, node := range nodes {
		ctx, span := telemetry.Tracer.Start(ctx, "apply."+node.Type())
		span.SetAttributes(attribute.String("resource.key", node.Key()))

		res, err := a.create(ctx, node)
		if err != nil {
			span.RecordError(err)
			span.End()
			return records, err
		}
		span.End()

		a.results[node.Key()] = res

		data, err := json.Marshal(node)
		if err != nil {
			return records, fmt.Errorf("failed to serialize %q: %w", node.Key(), err)
		}

		a.logger.WithContext(ctx).Info().
			Str("key", node.Key()).
			Str("type", node.Type()).
			Str("cloud_id", res.id).
			Msg("resource created")

		records = append(records, state.Record{
			Key:     node.Key(),
			Type:    node.Type(),
			CloudID: res.id,
			VPCID:   res.vpcID,
			Seq:     startSeq + i,
			Data:    data,
		})
	}

	return records, nil
}

// create dispatches one node to its service call.
func (a *Applier) create(ctx context.Context, node graph.Node) (created, error) {
	switch n := node.(type) {
	case *types.SecurityGroup:
		return a.createSecurityGroup(ctx, n)

	case *types.Instance:
		groupID, err := a.lookupID(types.SecurityGroupKey(n.SecurityGroupKey))
		if err != nil {
			return created{}, err
		}
		return a.createInstance(ctx, n, groupID)

	case *types.LoadBalancer:
		groupID, err := a.lookupID(types.SecurityGroupKey(n.SecurityGroupKey))
		if err != nil {
			return created{}, err
		}
		return a.createLoadBalancer(ctx, n, groupID)

	case *types.TargetGroup:
		inst, err := a.lookup(types.InstanceKey(n.VPCSourceInstance))
		if err != nil {
			return created{}, err
		}
		if inst.vpcID == "" {
			return created{}, fmt.Errorf("target group %q: instance %q has no recorded VPC", n.Name, n.VPCSourceInstance)
		}
		return a.createTargetGroup(ctx, n, inst.vpcID)

	case *types.Listener:
		lbARN, err := a.lookupID(types.LoadBalancerKey(n.LoadBalancerName))
		if err != nil {
			return created{}, err
		}
		tgARN, err := a.lookupID(types.TargetGroupKey(n.TargetGroupName))
		if err != nil {
			return created{}, err
		}
		return a.createListener(ctx, n, lbARN, tgARN)

	case *types.Attachment:
		tgARN, err := a.lookupID(types.TargetGroupKey(n.TargetGroupName))
		if err != nil {
			return created{}, err
		}
		instanceID, err := a.lookupID(types.InstanceKey(n.InstanceName))
		if err != nil {
			return created{}, err
		}
		return a.registerTarget(ctx, n, tgARN, instanceID)

	case *types.DBSubnetGroup:
		return a.createDBSubnetGroup(ctx, n)

	case *types.DBInstance:
		groupID, err := a.lookupID(types.SecurityGroupKey(n.SecurityGroupKey))
		if err != nil {
			return created{}, err
		}
		return a.createDBInstance(ctx, n, groupID)

	default:
		return created{}, fmt.Errorf("unknown resource type %q", node.Type())
	}
}

func (a *Applier) lookup(key string) (created, error) {
	res, ok := a.results[key]
	if !ok {
		return created{}, fmt.Errorf("no created resource for reference %q", key)
	}
	return res, nil
}

func (a *Applier) lookupID(key string) (string, error) {
	res, err := a.lookup(key)
	if err != nil {
		return "", err
	}
	return res.id, nil
}

// groupIDs maps flattened security-group keys to their cloud group IDs.
func (a *Applier) groupIDs() map[string]string {
	ids := make(map[string]string)
	for key, res := range a.results {
		if flat, ok := strings.CutPrefix(key, types.SecurityGroupKey("")); ok {
			ids[flat] = res.id
		}
	}
	return ids
}
