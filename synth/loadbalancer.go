package synth

import (
	"fmt"

	"topograph/config"
	"topograph/graph"
	"topograph/types"
)

// LoadBalancerChains emits, per load-balancer entry and in dependency
// order: the load balancer itself, its target group, its listener, and one
// attachment per target instance. The target group inherits its VPC
// placement from the first target instance, so an entry without target
// instances cannot be placed and fails synthesis.
func LoadBalancerChains(cfg *config.Config) ([]graph.Node, error) {
	var nodes []graph.Node

	for _, name := range sortedKeys(cfg.LoadBalancers) {
		entry := cfg.LoadBalancers[name]

		if len(entry.TargetInstances) == 0 {
			return nil, fmt.Errorf("load balancer %q: target group placement requires at least one target instance", name)
		}

		nodes = append(nodes, &types.LoadBalancer{
			Name:             name,
			SecurityGroupKey: FlattenKey(KindLB, name),
			SubnetIDs:        append([]string(nil), entry.SubnetIDs...),
			Internal:         false,
		})

		nodes = append(nodes, &types.TargetGroup{
			Name:              name,
			Port:              TargetGroupPort,
			Protocol:          TargetGroupProtocol,
			HealthCheckPath:   HealthCheckPath,
			VPCSourceInstance: entry.TargetInstances[0],
		})

		nodes = append(nodes, &types.Listener{
			Name:             name,
			Port:             entry.Port,
			Protocol:         entry.Protocol,
			LoadBalancerName: name,
			TargetGroupName:  name,
		})

		for _, instance := range entry.TargetInstances {
			nodes = append(nodes, &types.Attachment{
				TargetGroupName: name,
				InstanceName:    instance,
				Port:            AttachmentPort,
			})
		}
	}

	return nodes, nil
}
