package synth

import (
	"topograph/config"
	"topograph/types"
)

// Instances emits one compute instance per EC2 entry, AMI, instance type
// and subnet copied verbatim, attached to exactly the group "ec2_<name>".
func Instances(cfg *config.Config) []*types.Instance {
	instances := make([]*types.Instance, 0, len(cfg.EC2Instances))

	for _, name := range sortedKeys(cfg.EC2Instances) {
		entry := cfg.EC2Instances[name]
		instances = append(instances, &types.Instance{
			Name:             name,
			AMI:              entry.AMI,
			InstanceType:     entry.InstanceType,
			SubnetID:         entry.SubnetID,
			SecurityGroupKey: FlattenKey(KindEC2, name),
		})
	}

	return instances
}
