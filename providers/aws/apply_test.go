package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topograph/graph"
	"topograph/state"
	"topograph/telemetry"
	"topograph/types"
)

// callLog records service calls across all mocks so ordering is observable.
type callLog struct {
	calls []string
}

func (l *callLog) record(call string) {
	l.calls = append(l.calls, call)
}

// mockEC2Client hands out sequential group and instance IDs.
type mockEC2Client struct {
	log *callLog

	groups    int
	instances int
	runErr    error

	runInputs []*ec2.RunInstancesInput
	sgInputs  []*ec2.CreateSecurityGroupInput
}

func (m *mockEC2Client) CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	m.groups++
	m.sgInputs = append(m.sgInputs, params)
	id := fmt.Sprintf("sg-%d", m.groups)
	m.log.record("create_security_group:" + awssdk.ToString(params.GroupName))
	return &ec2.CreateSecurityGroupOutput{GroupId: awssdk.String(id)}, nil
}

func (m *mockEC2Client) AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	m.log.record("authorize_ingress:" + awssdk.ToString(params.GroupId))
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
}

func (m *mockEC2Client) AuthorizeSecurityGroupEgress(ctx context.Context, params *ec2.AuthorizeSecurityGroupEgressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupEgressOutput, error) {
	m.log.record("authorize_egress:" + awssdk.ToString(params.GroupId))
	return &ec2.AuthorizeSecurityGroupEgressOutput{}, nil
}

func (m *mockEC2Client) RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	if m.runErr != nil {
		return nil, m.runErr
	}
	m.instances++
	m.runInputs = append(m.runInputs, params)
	id := fmt.Sprintf("i-%d", m.instances)
	m.log.record("run_instances:" + id)
	return &ec2.RunInstancesOutput{
		Instances: []ec2types.Instance{
			{InstanceId: awssdk.String(id), VpcId: awssdk.String("vpc-1")},
		},
	}, nil
}

func (m *mockEC2Client) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	m.log.record("terminate_instances:" + params.InstanceIds[0])
	return &ec2.TerminateInstancesOutput{}, nil
}

func (m *mockEC2Client) DeleteSecurityGroup(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	m.log.record("delete_security_group:" + awssdk.ToString(params.GroupId))
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

type mockELBClient struct {
	log *callLog

	tgInputs       []*elasticloadbalancingv2.CreateTargetGroupInput
	lbInputs       []*elasticloadbalancingv2.CreateLoadBalancerInput
	registerInputs []*elasticloadbalancingv2.RegisterTargetsInput
}

func (m *mockELBClient) CreateLoadBalancer(ctx context.Context, params *elasticloadbalancingv2.CreateLoadBalancerInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.CreateLoadBalancerOutput, error) {
	m.lbInputs = append(m.lbInputs, params)
	arn := "arn:lb/" + awssdk.ToString(params.Name)
	m.log.record("create_load_balancer:" + arn)
	return &elasticloadbalancingv2.CreateLoadBalancerOutput{
		LoadBalancers: []elbv2types.LoadBalancer{{LoadBalancerArn: awssdk.String(arn)}},
	}, nil
}

func (m *mockELBClient) CreateTargetGroup(ctx context.Context, params *elasticloadbalancingv2.CreateTargetGroupInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.CreateTargetGroupOutput, error) {
	m.tgInputs = append(m.tgInputs, params)
	arn := "arn:tg/" + awssdk.ToString(params.Name)
	m.log.record("create_target_group:" + arn)
	return &elasticloadbalancingv2.CreateTargetGroupOutput{
		TargetGroups: []elbv2types.TargetGroup{{TargetGroupArn: awssdk.String(arn)}},
	}, nil
}

func (m *mockELBClient) CreateListener(ctx context.Context, params *elasticloadbalancingv2.CreateListenerInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.CreateListenerOutput, error) {
	arn := "arn:listener/" + awssdk.ToString(params.LoadBalancerArn)
	m.log.record("create_listener:" + arn)
	return &elasticloadbalancingv2.CreateListenerOutput{
		Listeners: []elbv2types.Listener{{ListenerArn: awssdk.String(arn)}},
	}, nil
}

func (m *mockELBClient) RegisterTargets(ctx context.Context, params *elasticloadbalancingv2.RegisterTargetsInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.RegisterTargetsOutput, error) {
	m.registerInputs = append(m.registerInputs, params)
	m.log.record("register_targets:" + awssdk.ToString(params.TargetGroupArn))
	return &elasticloadbalancingv2.RegisterTargetsOutput{}, nil
}

func (m *mockELBClient) DeleteLoadBalancer(ctx context.Context, params *elasticloadbalancingv2.DeleteLoadBalancerInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DeleteLoadBalancerOutput, error) {
	m.log.record("delete_load_balancer:" + awssdk.ToString(params.LoadBalancerArn))
	return &elasticloadbalancingv2.DeleteLoadBalancerOutput{}, nil
}

func (m *mockELBClient) DeleteTargetGroup(ctx context.Context, params *elasticloadbalancingv2.DeleteTargetGroupInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DeleteTargetGroupOutput, error) {
	m.log.record("delete_target_group:" + awssdk.ToString(params.TargetGroupArn))
	return &elasticloadbalancingv2.DeleteTargetGroupOutput{}, nil
}

func (m *mockELBClient) DeleteListener(ctx context.Context, params *elasticloadbalancingv2.DeleteListenerInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DeleteListenerOutput, error) {
	m.log.record("delete_listener:" + awssdk.ToString(params.ListenerArn))
	return &elasticloadbalancingv2.DeleteListenerOutput{}, nil
}

func (m *mockELBClient) DeregisterTargets(ctx context.Context, params *elasticloadbalancingv2.DeregisterTargetsInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DeregisterTargetsOutput, error) {
	m.log.record("deregister_targets:" + awssdk.ToString(params.TargetGroupArn))
	return &elasticloadbalancingv2.DeregisterTargetsOutput{}, nil
}

type mockRDSClient struct {
	log *callLog

	dbInputs     []*rds.CreateDBInstanceInput
	deleteInputs []*rds.DeleteDBInstanceInput
}

func (m *mockRDSClient) CreateDBSubnetGroup(ctx context.Context, params *rds.CreateDBSubnetGroupInput, optFns ...func(*rds.Options)) (*rds.CreateDBSubnetGroupOutput, error) {
	name := awssdk.ToString(params.DBSubnetGroupName)
	m.log.record("create_db_subnet_group:" + name)
	return &rds.CreateDBSubnetGroupOutput{
		DBSubnetGroup: &rdstypes.DBSubnetGroup{DBSubnetGroupName: awssdk.String(name)},
	}, nil
}

func (m *mockRDSClient) CreateDBInstance(ctx context.Context, params *rds.CreateDBInstanceInput, optFns ...func(*rds.Options)) (*rds.CreateDBInstanceOutput, error) {
	m.dbInputs = append(m.dbInputs, params)
	id := awssdk.ToString(params.DBInstanceIdentifier)
	m.log.record("create_db_instance:" + id)
	return &rds.CreateDBInstanceOutput{
		DBInstance: &rdstypes.DBInstance{DBInstanceIdentifier: awssdk.String(id)},
	}, nil
}

func (m *mockRDSClient) DeleteDBSubnetGroup(ctx context.Context, params *rds.DeleteDBSubnetGroupInput, optFns ...func(*rds.Options)) (*rds.DeleteDBSubnetGroupOutput, error) {
	m.log.record("delete_db_subnet_group:" + awssdk.ToString(params.DBSubnetGroupName))
	return &rds.DeleteDBSubnetGroupOutput{}, nil
}

func (m *mockRDSClient) DeleteDBInstance(ctx context.Context, params *rds.DeleteDBInstanceInput, optFns ...func(*rds.Options)) (*rds.DeleteDBInstanceOutput, error) {
	m.deleteInputs = append(m.deleteInputs, params)
	m.log.record("delete_db_instance:" + awssdk.ToString(params.DBInstanceIdentifier))
	return &rds.DeleteDBInstanceOutput{}, nil
}

func testApplier() (*Applier, *mockEC2Client, *mockELBClient, *mockRDSClient, *callLog) {
	log := &callLog{}
	ec2Mock := &mockEC2Client{log: log}
	elbMock := &mockELBClient{log: log}
	rdsMock := &mockRDSClient{log: log}
	clients := &Clients{EC2: ec2Mock, ELB: elbMock, RDS: rdsMock, region: "us-east-1"}
	return NewApplier(clients, telemetry.NewLogger("test")), ec2Mock, elbMock, rdsMock, log
}

// chainNodes is a full load-balancer chain in topological order.
func chainNodes() []graph.Node {
	return []graph.Node{
		&types.SecurityGroup{FlatKey: "ec2_web_server"},
		&types.SecurityGroup{FlatKey: "lb_frontend_lb"},
		&types.Instance{Name: "web_server", AMI: "ami-1", InstanceType: "t3.micro", SubnetID: "subnet-aaa", SecurityGroupKey: "ec2_web_server"},
		&types.LoadBalancer{Name: "frontend_lb", SecurityGroupKey: "lb_frontend_lb", SubnetIDs: []string{"subnet-aaa"}},
		&types.TargetGroup{Name: "frontend_lb", Port: 80, Protocol: "HTTP", HealthCheckPath: "/", VPCSourceInstance: "web_server"},
		&types.Listener{Name: "frontend_lb", Port: 80, Protocol: "HTTP", LoadBalancerName: "frontend_lb", TargetGroupName: "frontend_lb"},
		&types.Attachment{TargetGroupName: "frontend_lb", InstanceName: "web_server", Port: 80},
	}
}

func TestApplyThreadsIdentifiersThroughTheChain(t *testing.T) {
	applier, ec2Mock, elbMock, _, _ := testApplier()

	records, err := applier.Apply(context.Background(), chainNodes(), 0)
	require.NoError(t, err)
	require.Len(t, records, 7)

	byKey := make(map[string]state.Record)
	for i, rec := range records {
		assert.Equal(t, i, rec.Seq)
		byKey[rec.Key] = rec
	}

	// The instance launched into the group created for ec2_web_server.
	require.Len(t, ec2Mock.runInputs, 1)
	assert.Equal(t, []string{byKey["sg:ec2_web_server"].CloudID}, ec2Mock.runInputs[0].SecurityGroupIds)

	// The load balancer attached the lb_frontend_lb group.
	require.Len(t, elbMock.lbInputs, 1)
	assert.Equal(t, []string{byKey["sg:lb_frontend_lb"].CloudID}, elbMock.lbInputs[0].SecurityGroups)

	// The instance's VPC flowed into target group placement.
	inst := byKey["instance:web_server"]
	assert.Equal(t, "i-1", inst.CloudID)
	assert.Equal(t, "vpc-1", inst.VPCID)
	require.Len(t, elbMock.tgInputs, 1)
	assert.Equal(t, "vpc-1", awssdk.ToString(elbMock.tgInputs[0].VpcId))

	// The attachment registered the launched instance with the target group.
	require.Len(t, elbMock.registerInputs, 1)
	tgARN := byKey["tg:frontend_lb"].CloudID
	assert.Equal(t, tgARN, awssdk.ToString(elbMock.registerInputs[0].TargetGroupArn))
	assert.Equal(t, "i-1", awssdk.ToString(elbMock.registerInputs[0].Targets[0].Id))
	assert.Equal(t, attachmentCloudID(tgARN, "i-1"), byKey["attachment:frontend_lb:web_server"].CloudID)
}

func TestApplyPartialFailureReturnsCompletedRecords(t *testing.T) {
	applier, ec2Mock, _, _, _ := testApplier()
	ec2Mock.runErr = fmt.Errorf("InsufficientInstanceCapacity")

	nodes := []graph.Node{
		&types.SecurityGroup{FlatKey: "ec2_web_server"},
		&types.Instance{Name: "web_server", AMI: "ami-1", InstanceType: "t3.micro", SubnetID: "subnet-aaa", SecurityGroupKey: "ec2_web_server"},
	}

	records, err := applier.Apply(context.Background(), nodes, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InsufficientInstanceCapacity")

	// The group created before the failure still comes back for the snapshot.
	require.Len(t, records, 1)
	assert.Equal(t, "sg:ec2_web_server", records[0].Key)
	assert.Equal(t, "sg-1", records[0].CloudID)
}

func TestApplySeededFromSnapshotContinuesSequence(t *testing.T) {
	applier, _, elbMock, _, _ := testApplier()

	applier.Seed(map[string]state.Record{
		"sg:lb_frontend_lb":   {Key: "sg:lb_frontend_lb", CloudID: "sg-9", Seq: 0},
		"instance:web_server": {Key: "instance:web_server", CloudID: "i-9", VPCID: "vpc-9", Seq: 1},
	})

	nodes := []graph.Node{
		&types.TargetGroup{Name: "frontend_lb", Port: 80, Protocol: "HTTP", HealthCheckPath: "/", VPCSourceInstance: "web_server"},
	}

	records, err := applier.Apply(context.Background(), nodes, 2)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Placement came from the snapshot, not a fresh RunInstances call.
	require.Len(t, elbMock.tgInputs, 1)
	assert.Equal(t, "vpc-9", awssdk.ToString(elbMock.tgInputs[0].VpcId))
	assert.Equal(t, 2, records[0].Seq)
}

func TestApplyFailsOnUnseededReference(t *testing.T) {
	applier, _, _, _, _ := testApplier()

	nodes := []graph.Node{
		&types.Instance{Name: "web_server", AMI: "ami-1", InstanceType: "t3.micro", SubnetID: "subnet-aaa", SecurityGroupKey: "ec2_web_server"},
	}

	_, err := applier.Apply(context.Background(), nodes, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sg:ec2_web_server")
}

func TestDestroyWalksReverseCreationOrder(t *testing.T) {
	applier, _, _, rdsMock, log := testApplier()

	dbData, err := json.Marshal(&types.DBInstance{Name: "main_db", SkipFinalSnapshot: true})
	require.NoError(t, err)

	records := []state.Record{
		{Key: "sg:rds_main_db", Type: types.TypeSecurityGroup, CloudID: "sg-1", Seq: 0},
		{Key: "dbsubnets:main_db", Type: types.TypeDBSubnetGroup, CloudID: "main_db", Seq: 1},
		{Key: "db:main_db", Type: types.TypeDBInstance, CloudID: "main_db", Seq: 2, Data: dbData},
	}

	require.NoError(t, applier.Destroy(context.Background(), records))

	assert.Equal(t, []string{
		"delete_db_instance:main_db",
		"delete_db_subnet_group:main_db",
		"delete_security_group:sg-1",
	}, log.calls)

	// skip_final_snapshot recorded at apply time drives the delete call.
	require.Len(t, rdsMock.deleteInputs, 1)
	assert.True(t, awssdk.ToBool(rdsMock.deleteInputs[0].SkipFinalSnapshot))
}

func TestDestroyDeregistersAttachmentTargets(t *testing.T) {
	applier, _, _, _, log := testApplier()

	records := []state.Record{
		{Key: "attachment:frontend_lb:web_server", Type: types.TypeAttachment, CloudID: attachmentCloudID("arn:tg/frontend_lb", "i-1"), Seq: 0},
	}

	require.NoError(t, applier.Destroy(context.Background(), records))
	assert.Equal(t, []string{"deregister_targets:arn:tg/frontend_lb"}, log.calls)
}
