// Package types defines the desired-state resource model for topograph.
package types

// Resource type identifiers, used as graph node types and snapshot record types.
const (
	TypeSecurityGroup = "security_group"
	TypeInstance      = "ec2_instance"
	TypeLoadBalancer  = "load_balancer"
	TypeTargetGroup   = "target_group"
	TypeListener      = "listener"
	TypeAttachment    = "target_group_attachment"
	TypeDBSubnetGroup = "db_subnet_group"
	TypeDBInstance    = "db_instance"
)

// SecurityGroupRule is one resolved ingress or egress entry.
// CIDRBlocks and SourceGroupKeys are mutually exclusive on ingress;
// egress rules never carry SourceGroupKeys.
type SecurityGroupRule struct {
	FromPort        int32    `json:"from_port"`
	ToPort          int32    `json:"to_port"`
	Protocol        string   `json:"protocol"`
	CIDRBlocks      []string `json:"cidr_blocks,omitempty"`
	SourceGroupKeys []string `json:"source_group_keys,omitempty"`
}

// SecurityGroup is one synthesized group, indexed by its flattened key.
type SecurityGroup struct {
	FlatKey string              `json:"flat_key"`
	Ingress []SecurityGroupRule `json:"ingress,omitempty"`
	Egress  []SecurityGroupRule `json:"egress,omitempty"`
}

func (g *SecurityGroup) Key() string  { return SecurityGroupKey(g.FlatKey) }
func (g *SecurityGroup) Type() string { return TypeSecurityGroup }

// DependsOn lists the groups referenced by ingress rules. A group that
// allows traffic from another group cannot exist before it.
func (g *SecurityGroup) DependsOn() []string {
	var deps []string
	for _, rule := range g.Ingress {
		for _, key := range rule.SourceGroupKeys {
			deps = append(deps, SecurityGroupKey(key))
		}
	}
	return deps
}

// Instance is one desired compute instance.
type Instance struct {
	Name             string `json:"name"`
	AMI              string `json:"ami"`
	InstanceType     string `json:"instance_type"`
	SubnetID         string `json:"subnet_id"`
	SecurityGroupKey string `json:"security_group_key"`
}

func (i *Instance) Key() string  { return InstanceKey(i.Name) }
func (i *Instance) Type() string { return TypeInstance }

func (i *Instance) DependsOn() []string {
	return []string{SecurityGroupKey(i.SecurityGroupKey)}
}

// LoadBalancer is one desired application load balancer.
// Scheme and type are fixed policy: internet-facing, application.
type LoadBalancer struct {
	Name             string   `json:"name"`
	SecurityGroupKey string   `json:"security_group_key"`
	SubnetIDs        []string `json:"subnet_ids"`
	Internal         bool     `json:"internal"`
}

func (lb *LoadBalancer) Key() string  { return LoadBalancerKey(lb.Name) }
func (lb *LoadBalancer) Type() string { return TypeLoadBalancer }

func (lb *LoadBalancer) DependsOn() []string {
	return []string{SecurityGroupKey(lb.SecurityGroupKey)}
}

// TargetGroup is the target group behind one load balancer. Its VPC
// placement is inherited from the first target instance.
type TargetGroup struct {
	Name              string `json:"name"`
	Port              int32  `json:"port"`
	Protocol          string `json:"protocol"`
	HealthCheckPath   string `json:"health_check_path"`
	VPCSourceInstance string `json:"vpc_source_instance"`
}

func (tg *TargetGroup) Key() string  { return TargetGroupKey(tg.Name) }
func (tg *TargetGroup) Type() string { return TypeTargetGroup }

func (tg *TargetGroup) DependsOn() []string {
	return []string{InstanceKey(tg.VPCSourceInstance)}
}

// Listener forwards unconditionally from a load balancer to a target group.
type Listener struct {
	Name             string `json:"name"`
	Port             int32  `json:"port"`
	Protocol         string `json:"protocol"`
	LoadBalancerName string `json:"load_balancer_name"`
	TargetGroupName  string `json:"target_group_name"`
}

func (l *Listener) Key() string  { return ListenerKey(l.Name) }
func (l *Listener) Type() string { return TypeListener }

func (l *Listener) DependsOn() []string {
	return []string{LoadBalancerKey(l.LoadBalancerName), TargetGroupKey(l.TargetGroupName)}
}

// Attachment registers one instance with one target group.
type Attachment struct {
	TargetGroupName string `json:"target_group_name"`
	InstanceName    string `json:"instance_name"`
	Port            int32  `json:"port"`
}

func (a *Attachment) Key() string  { return AttachmentKey(a.TargetGroupName, a.InstanceName) }
func (a *Attachment) Type() string { return TypeAttachment }

func (a *Attachment) DependsOn() []string {
	return []string{TargetGroupKey(a.TargetGroupName), InstanceKey(a.InstanceName)}
}

// DBSubnetGroup is the dedicated subnet group for one database.
type DBSubnetGroup struct {
	Name      string   `json:"name"`
	SubnetIDs []string `json:"subnet_ids"`
}

func (g *DBSubnetGroup) Key() string         { return DBSubnetGroupKey(g.Name) }
func (g *DBSubnetGroup) Type() string        { return TypeDBSubnetGroup }
func (g *DBSubnetGroup) DependsOn() []string { return nil }

// DBInstance is one desired managed database instance. Engine, version,
// public accessibility and snapshot policy are baked in by the synthesizer.
type DBInstance struct {
	Name               string `json:"name"`
	Engine             string `json:"engine"`
	EngineVersion      string `json:"engine_version"`
	AllocatedStorage   int32  `json:"allocated_storage"`
	InstanceClass      string `json:"instance_class"`
	DBName             string `json:"db_name"`
	Username           string `json:"username"`
	Password           string `json:"password"`
	SecurityGroupKey   string `json:"security_group_key"`
	SubnetGroupName    string `json:"subnet_group_name"`
	PubliclyAccessible bool   `json:"publicly_accessible"`
	SkipFinalSnapshot  bool   `json:"skip_final_snapshot"`
}

func (db *DBInstance) Key() string  { return DBInstanceKey(db.Name) }
func (db *DBInstance) Type() string { return TypeDBInstance }

func (db *DBInstance) DependsOn() []string {
	return []string{SecurityGroupKey(db.SecurityGroupKey), DBSubnetGroupKey(db.SubnetGroupName)}
}
