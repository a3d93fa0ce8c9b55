package synth

import (
	"topograph/config"
	"topograph/types"
)

// SecurityGroups emits one group per flattened key, in lexical key order.
//
// Ingress entries carrying source_security_group resolve to the group of
// the named load balancer (flattened key "lb_<x>"); entries carrying
// source_security_groups resolve each name to the group of the named EC2
// instance ("ec2_<x>"). Egress never resolves references; only literal
// CIDR blocks apply there. Resolution is name-based: a reference to a key
// that is never emitted fails the build during graph resolution.
func SecurityGroups(flat map[string]config.SecurityGroupRules) []*types.SecurityGroup {
	groups := make([]*types.SecurityGroup, 0, len(flat))

	for _, flatKey := range sortedKeys(flat) {
		rules := flat[flatKey]
		groups = append(groups, &types.SecurityGroup{
			FlatKey: flatKey,
			Ingress: ingressRules(rules.Ingress),
			Egress:  egressRules(rules.Egress),
		})
	}

	return groups
}

func ingressRules(rules []config.Rule) []types.SecurityGroupRule {
	var out []types.SecurityGroupRule
	for _, r := range rules {
		rule := types.SecurityGroupRule{
			FromPort: r.FromPort,
			ToPort:   r.ToPort,
			Protocol: r.Protocol,
		}

		switch {
		case r.SourceSecurityGroup != "":
			rule.SourceGroupKeys = []string{FlattenKey(KindLB, r.SourceSecurityGroup)}
		case len(r.SourceSecurityGroups) > 0:
			for _, name := range r.SourceSecurityGroups {
				rule.SourceGroupKeys = append(rule.SourceGroupKeys, FlattenKey(KindEC2, name))
			}
		default:
			rule.CIDRBlocks = append(rule.CIDRBlocks, r.CIDRBlocks...)
		}

		out = append(out, rule)
	}
	return out
}

func egressRules(rules []config.Rule) []types.SecurityGroupRule {
	var out []types.SecurityGroupRule
	for _, r := range rules {
		out = append(out, types.SecurityGroupRule{
			FromPort:   r.FromPort,
			ToPort:     r.ToPort,
			Protocol:   r.Protocol,
			CIDRBlocks: append([]string(nil), r.CIDRBlocks...),
		})
	}
	return out
}
