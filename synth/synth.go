// Package synth turns a topology configuration into the desired-state
// resource graph: security groups first, then compute instances,
// load-balancer chains, and databases. Every emitter is a one-shot mapping
// from configuration entry to declared resource; reconciliation against
// live infrastructure happens elsewhere.
package synth

import (
	"fmt"

	"topograph/config"
	"topograph/graph"
)

// Hardcoded policy, not configurable per entry.
const (
	TargetGroupPort     int32 = 80
	TargetGroupProtocol       = "HTTP"
	AttachmentPort      int32 = 80
	HealthCheckPath           = "/"
	DBEngine                  = "postgres"
	DBEngineVersion           = "13.4"
)

// Build synthesizes the full desired-state graph from cfg and resolves
// every symbolic reference. An unresolved reference or a load balancer
// without target instances fails the build.
func Build(cfg *config.Config) (*graph.Graph, error) {
	g := graph.New()

	for _, sg := range SecurityGroups(FlattenRules(cfg)) {
		if err := g.Add(sg); err != nil {
			return nil, err
		}
	}

	for _, inst := range Instances(cfg) {
		if err := g.Add(inst); err != nil {
			return nil, err
		}
	}

	lbNodes, err := LoadBalancerChains(cfg)
	if err != nil {
		return nil, err
	}
	for _, n := range lbNodes {
		if err := g.Add(n); err != nil {
			return nil, err
		}
	}

	for _, n := range DatabaseChains(cfg) {
		if err := g.Add(n); err != nil {
			return nil, err
		}
	}

	if err := g.Resolve(); err != nil {
		return nil, fmt.Errorf("failed to resolve references: %w", err)
	}

	return g, nil
}
