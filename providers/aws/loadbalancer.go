package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"topograph/types"
)

func (a *Applier) createLoadBalancer(ctx context.Context, lb *types.LoadBalancer, groupID string) (created, error) {
	out, err := a.clients.ELB.CreateLoadBalancer(ctx, buildCreateLoadBalancerInput(lb, groupID))
	if err != nil {
		return created{}, fmt.Errorf("failed to create load balancer %q: %w", lb.Name, err)
	}
	if len(out.LoadBalancers) == 0 {
		return created{}, fmt.Errorf("load balancer %q: CreateLoadBalancer returned no load balancers", lb.Name)
	}

	return created{id: aws.ToString(out.LoadBalancers[0].LoadBalancerArn)}, nil
}

func buildCreateLoadBalancerInput(lb *types.LoadBalancer, groupID string) *elasticloadbalancingv2.CreateLoadBalancerInput {
	scheme := elbv2types.LoadBalancerSchemeEnumInternetFacing
	if lb.Internal {
		scheme = elbv2types.LoadBalancerSchemeEnumInternal
	}

	return &elasticloadbalancingv2.CreateLoadBalancerInput{
		Name:           aws.String(lb.Name),
		Type:           elbv2types.LoadBalancerTypeEnumApplication,
		Scheme:         scheme,
		SecurityGroups: []string{groupID},
		Subnets:        lb.SubnetIDs,
		Tags: []elbv2types.Tag{
			{Key: aws.String("Name"), Value: aws.String(lb.Name)},
		},
	}
}

// createTargetGroup places the group in the VPC of the instance it fronts.
func (a *Applier) createTargetGroup(ctx context.Context, tg *types.TargetGroup, vpcID string) (created, error) {
	out, err := a.clients.ELB.CreateTargetGroup(ctx, buildCreateTargetGroupInput(tg, vpcID))
	if err != nil {
		return created{}, fmt.Errorf("failed to create target group %q: %w", tg.Name, err)
	}
	if len(out.TargetGroups) == 0 {
		return created{}, fmt.Errorf("target group %q: CreateTargetGroup returned no target groups", tg.Name)
	}

	return created{id: aws.ToString(out.TargetGroups[0].TargetGroupArn)}, nil
}

func buildCreateTargetGroupInput(tg *types.TargetGroup, vpcID string) *elasticloadbalancingv2.CreateTargetGroupInput {
	return &elasticloadbalancingv2.CreateTargetGroupInput{
		Name:            aws.String(tg.Name),
		Port:            aws.Int32(tg.Port),
		Protocol:        elbv2types.ProtocolEnum(strings.ToUpper(tg.Protocol)),
		VpcId:           aws.String(vpcID),
		TargetType:      elbv2types.TargetTypeEnumInstance,
		HealthCheckPath: aws.String(tg.HealthCheckPath),
	}
}

func (a *Applier) createListener(ctx context.Context, l *types.Listener, lbARN, tgARN string) (created, error) {
	out, err := a.clients.ELB.CreateListener(ctx, buildCreateListenerInput(l, lbARN, tgARN))
	if err != nil {
		return created{}, fmt.Errorf("failed to create listener %q: %w", l.Name, err)
	}
	if len(out.Listeners) == 0 {
		return created{}, fmt.Errorf("listener %q: CreateListener returned no listeners", l.Name)
	}

	return created{id: aws.ToString(out.Listeners[0].ListenerArn)}, nil
}

func buildCreateListenerInput(l *types.Listener, lbARN, tgARN string) *elasticloadbalancingv2.CreateListenerInput {
	return &elasticloadbalancingv2.CreateListenerInput{
		LoadBalancerArn: aws.String(lbARN),
		Port:            aws.Int32(l.Port),
		Protocol:        elbv2types.ProtocolEnum(strings.ToUpper(l.Protocol)),
		DefaultActions: []elbv2types.Action{
			{
				Type:           elbv2types.ActionTypeEnumForward,
				TargetGroupArn: aws.String(tgARN),
			},
		},
	}
}

func (a *Applier) registerTarget(ctx context.Context, att *types.Attachment, tgARN, instanceID string) (created, error) {
	_, err := a.clients.ELB.RegisterTargets(ctx, buildRegisterTargetsInput(att, tgARN, instanceID))
	if err != nil {
		return created{}, fmt.Errorf("failed to register %q with target group %q: %w", att.InstanceName, att.TargetGroupName, err)
	}

	return created{id: attachmentCloudID(tgARN, instanceID)}, nil
}

func buildRegisterTargetsInput(att *types.Attachment, tgARN, instanceID string) *elasticloadbalancingv2.RegisterTargetsInput {
	return &elasticloadbalancingv2.RegisterTargetsInput{
		TargetGroupArn: aws.String(tgARN),
		Targets: []elbv2types.TargetDescription{
			{
				Id:   aws.String(instanceID),
				Port: aws.Int32(att.Port),
			},
		},
	}
}

// attachmentCloudID packs both identifiers an attachment needs for deletion.
func attachmentCloudID(tgARN, instanceID string) string {
	return tgARN + "|" + instanceID
}

func splitAttachmentCloudID(cloudID string) (tgARN, instanceID string, err error) {
	parts := strings.SplitN(cloudID, "|", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed attachment cloud id %q", cloudID)
	}
	return parts[0], parts[1], nil
}
