package synth

import (
	"sort"

	"topograph/config"
)

// Kind tags prefixed onto resource keys to form flattened security-group keys.
const (
	KindEC2 = "ec2"
	KindLB  = "lb"
	KindRDS = "rds"
)

// FlattenKey builds the flattened security-group key for a resource.
func FlattenKey(kind, name string) string {
	return kind + "_" + name
}

// FlattenRules merges the per-kind security-group-rule mappings into one
// uniform mapping keyed by flattened key. Merge order is EC2, then load
// balancers, then RDS; on a (theoretical) collision the later kind wins.
func FlattenRules(cfg *config.Config) map[string]config.SecurityGroupRules {
	flat := make(map[string]config.SecurityGroupRules)

	for name, inst := range cfg.EC2Instances {
		flat[FlattenKey(KindEC2, name)] = inst.SecurityGroupRules
	}
	for name, lb := range cfg.LoadBalancers {
		flat[FlattenKey(KindLB, name)] = lb.SecurityGroupRules
	}
	for name, db := range cfg.RDSDatabases {
		flat[FlattenKey(KindRDS, name)] = db.SecurityGroupRules
	}

	return flat
}

// sortedKeys returns map keys in lexical order so emission is deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
