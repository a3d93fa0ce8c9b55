package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"topograph/types"
)

// createInstance launches one instance attached to its single group.
func (a *Applier) createInstance(ctx context.Context, inst *types.Instance, groupID string) (created, error) {
	out, err := a.clients.EC2.RunInstances(ctx, buildRunInstancesInput(inst, groupID))
	if err != nil {
		return created{}, fmt.Errorf("failed to launch instance %q: %w", inst.Name, err)
	}
	if len(out.Instances) == 0 {
		return created{}, fmt.Errorf("instance %q: RunInstances returned no instances", inst.Name)
	}

	launched := out.Instances[0]
	return created{
		id:    aws.ToString(launched.InstanceId),
		vpcID: aws.ToString(launched.VpcId),
	}, nil
}

func buildRunInstancesInput(inst *types.Instance, groupID string) *ec2.RunInstancesInput {
	return &ec2.RunInstancesInput{
		ImageId:          aws.String(inst.AMI),
		InstanceType:     ec2types.InstanceType(inst.InstanceType),
		SubnetId:         aws.String(inst.SubnetID),
		SecurityGroupIds: []string{groupID},
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		TagSpecifications: []ec2types.TagSpecification{
			{
				ResourceType: ec2types.ResourceTypeInstance,
				Tags:         nameTag(inst.Name),
			},
		},
	}
}

func nameTag(name string) []ec2types.Tag {
	return []ec2types.Tag{
		{Key: aws.String("Name"), Value: aws.String(name)},
	}
}
