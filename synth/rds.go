package synth

import (
	"topograph/config"
	"topograph/graph"
	"topograph/types"
)

// DatabaseChains emits, per RDS entry, a dedicated DB subnet group followed
// by the database instance attached to it and to the group "rds_<name>".
// Databases are never publicly accessible and never take a final snapshot
// at destroy time.
func DatabaseChains(cfg *config.Config) []graph.Node {
	var nodes []graph.Node

	for _, name := range sortedKeys(cfg.RDSDatabases) {
		entry := cfg.RDSDatabases[name]

		nodes = append(nodes, &types.DBSubnetGroup{
			Name:      name,
			SubnetIDs: append([]string(nil), entry.SubnetIDs...),
		})

		nodes = append(nodes, &types.DBInstance{
			Name:               name,
			Engine:             DBEngine,
			EngineVersion:      DBEngineVersion,
			AllocatedStorage:   entry.AllocatedStorage,
			InstanceClass:      entry.InstanceClass,
			DBName:             entry.DBName,
			Username:           entry.Username,
			Password:           entry.Password,
			SecurityGroupKey:   FlattenKey(KindRDS, name),
			SubnetGroupName:    name,
			PubliclyAccessible: false,
			SkipFinalSnapshot:  true,
		})
	}

	return nodes
}
