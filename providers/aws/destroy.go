package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"go.opentelemetry.io/otel/attribute"

	"topograph/state"
	"topograph/telemetry"
	"topograph/types"
)

// Destroy deletes every snapshot record in reverse creation order, so
// dependents always go before their dependencies. Deletion is one-shot:
// a provider error aborts the walk and is surfaced as-is.
func (a *Applier) Destroy(ctx context.Context, records []state.Record) error {
	ordered := make([]state.Record, len(records))
	copy(ordered, records)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq > ordered[j].Seq })

	for _, rec := range ordered {
		ctx, span := telemetry.Tracer.Start(ctx, "destroy."+rec.Type)
		span.SetAttributes(attribute.String("resource.key", rec.Key))

		err := a.destroy(ctx, rec)
		if err != nil {
			span.RecordError(err)
			span.End()
			return err
		}
		span.End()

		a.logger.WithContext(ctx).Info().
			Str("key", rec.Key).
			Str("type", rec.Type).
			Str("cloud_id", rec.CloudID).
			Msg("resource destroyed")
	}

	return nil
}

func (a *Applier) destroy(ctx context.Context, rec state.Record) error {
	switch rec.Type {
	case types.TypeSecurityGroup:
		_, err := a.clients.EC2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
			GroupId: aws.String(rec.CloudID),
		})
		if err != nil {
			return fmt.Errorf("failed to delete security group %q: %w", rec.Key, err)
		}

	case types.TypeInstance:
		_, err := a.clients.EC2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
			InstanceIds: []string{rec.CloudID},
		})
		if err != nil {
			return fmt.Errorf("failed to terminate instance %q: %w", rec.Key, err)
		}

	case types.TypeLoadBalancer:
		_, err := a.clients.ELB.DeleteLoadBalancer(ctx, &elasticloadbalancingv2.DeleteLoadBalancerInput{
			LoadBalancerArn: aws.String(rec.CloudID),
		})
		if err != nil {
			return fmt.Errorf("failed to delete load balancer %q: %w", rec.Key, err)
		}

	case types.TypeTargetGroup:
		_, err := a.clients.ELB.DeleteTargetGroup(ctx, &elasticloadbalancingv2.DeleteTargetGroupInput{
			TargetGroupArn: aws.String(rec.CloudID),
		})
		if err != nil {
			return fmt.Errorf("failed to delete target group %q: %w", rec.Key, err)
		}

	case types.TypeListener:
		_, err := a.clients.ELB.DeleteListener(ctx, &elasticloadbalancingv2.DeleteListenerInput{
			ListenerArn: aws.String(rec.CloudID),
		})
		if err != nil {
			return fmt.Errorf("failed to delete listener %q: %w", rec.Key, err)
		}

	case types.TypeAttachment:
		return a.deregisterTarget(ctx, rec)

	case types.TypeDBSubnetGroup:
		_, err := a.clients.RDS.DeleteDBSubnetGroup(ctx, &rds.DeleteDBSubnetGroupInput{
			DBSubnetGroupName: aws.String(rec.CloudID),
		})
		if err != nil {
			return fmt.Errorf("failed to delete DB subnet group %q: %w", rec.Key, err)
		}

	case types.TypeDBInstance:
		// Final snapshots are always skipped at destroy time.
		_, err := a.clients.RDS.DeleteDBInstance(ctx, &rds.DeleteDBInstanceInput{
			DBInstanceIdentifier: aws.String(rec.CloudID),
			SkipFinalSnapshot:    aws.Bool(skipFinalSnapshot(rec)),
		})
		if err != nil {
			return fmt.Errorf("failed to delete DB instance %q: %w", rec.Key, err)
		}

	default:
		return fmt.Errorf("unknown resource type %q for %q", rec.Type, rec.Key)
	}

	return nil
}

func (a *Applier) deregisterTarget(ctx context.Context, rec state.Record) error {
	tgARN, instanceID, err := splitAttachmentCloudID(rec.CloudID)
	if err != nil {
		return fmt.Errorf("attachment %q: %w", rec.Key, err)
	}

	_, err = a.clients.ELB.DeregisterTargets(ctx, &elasticloadbalancingv2.DeregisterTargetsInput{
		TargetGroupArn: aws.String(tgARN),
		Targets: []elbv2types.TargetDescription{
			{Id: aws.String(instanceID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to deregister target for %q: %w", rec.Key, err)
	}

	return nil
}

// skipFinalSnapshot reads the policy flag back out of the recorded node.
func skipFinalSnapshot(rec state.Record) bool {
	var db types.DBInstance
	if err := json.Unmarshal(rec.Data, &db); err != nil {
		return true
	}
	return db.SkipFinalSnapshot
}
