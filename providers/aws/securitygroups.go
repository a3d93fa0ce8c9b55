package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"topograph/types"
)

// createSecurityGroup creates the group, then authorizes its ingress and
// egress rules. Ingress entries referencing other groups use the cloud IDs
// of groups created earlier in the topological walk.
func (a *Applier) createSecurityGroup(ctx context.Context, sg *types.SecurityGroup) (created, error) {
	out, err := a.clients.EC2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(sg.FlatKey),
		Description: aws.String("topograph managed group " + sg.FlatKey),
		TagSpecifications: []ec2types.TagSpecification{
			{
				ResourceType: ec2types.ResourceTypeSecurityGroup,
				Tags:         nameTag(sg.FlatKey),
			},
		},
	})
	if err != nil {
		return created{}, fmt.Errorf("failed to create security group %q: %w", sg.FlatKey, err)
	}

	groupID := aws.ToString(out.GroupId)

	ingress, err := buildPermissions(sg.Ingress, a.groupIDs())
	if err != nil {
		return created{}, fmt.Errorf("security group %q: %w", sg.FlatKey, err)
	}
	if len(ingress) > 0 {
		_, err := a.clients.EC2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: ingress,
		})
		if err != nil {
			return created{}, fmt.Errorf("failed to authorize ingress for %q: %w", sg.FlatKey, err)
		}
	}

	// Egress rules are literal-only, so the resolver never fires here.
	egress, err := buildPermissions(sg.Egress, nil)
	if err != nil {
		return created{}, fmt.Errorf("security group %q: %w", sg.FlatKey, err)
	}
	if len(egress) > 0 {
		_, err := a.clients.EC2.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: egress,
		})
		if err != nil {
			return created{}, fmt.Errorf("failed to authorize egress for %q: %w", sg.FlatKey, err)
		}
	}

	return created{id: groupID}, nil
}

// buildPermissions converts resolved rules into EC2 IP permissions.
// groupIDs maps flattened keys to cloud group IDs for reference rules.
func buildPermissions(rules []types.SecurityGroupRule, groupIDs map[string]string) ([]ec2types.IpPermission, error) {
	var perms []ec2types.IpPermission

	for _, rule := range rules {
		perm := ec2types.IpPermission{
			FromPort:   aws.Int32(rule.FromPort),
			ToPort:     aws.Int32(rule.ToPort),
			IpProtocol: aws.String(rule.Protocol),
		}

		for _, cidr := range rule.CIDRBlocks {
			perm.IpRanges = append(perm.IpRanges, ec2types.IpRange{
				CidrIp: aws.String(cidr),
			})
		}

		for _, key := range rule.SourceGroupKeys {
			id, ok := groupIDs[key]
			if !ok {
				return nil, fmt.Errorf("no created group for reference %q", key)
			}
			perm.UserIdGroupPairs = append(perm.UserIdGroupPairs, ec2types.UserIdGroupPair{
				GroupId: aws.String(id),
			})
		}

		perms = append(perms, perm)
	}

	return perms, nil
}
