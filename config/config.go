// Package config loads and validates the topology configuration document.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultPath is used when no config path is given.
const DefaultPath = "config.json"

// Config is the topology document. Resource keys are unique within their
// own kind; the three namespaces need not be disjoint from each other.
type Config struct {
	EC2Instances  map[string]EC2Instance  `json:"ec2_instances"`
	LoadBalancers map[string]LoadBalancer `json:"load_balancers"`
	RDSDatabases  map[string]RDSDatabase  `json:"rds_databases"`
}

// EC2Instance describes one compute instance entry.
type EC2Instance struct {
	AMI                string             `json:"ami"`
	InstanceType       string             `json:"instance_type"`
	SubnetID           string             `json:"subnet_id"`
	SecurityGroupRules SecurityGroupRules `json:"security_group_rules"`
}

// LoadBalancer describes one load balancer entry. TargetInstances names
// EC2 resource keys; the first entry determines target group placement.
type LoadBalancer struct {
	SubnetIDs          []string           `json:"subnets"`
	Port               int32              `json:"port"`
	Protocol           string             `json:"protocol"`
	TargetInstances    []string           `json:"target_instances"`
	SecurityGroupRules SecurityGroupRules `json:"security_group_rules"`
}

// RDSDatabase describes one managed database entry.
type RDSDatabase struct {
	AllocatedStorage   int32              `json:"allocated_storage"`
	InstanceClass      string             `json:"instance_class"`
	DBName             string             `json:"db_name"`
	Username           string             `json:"username"`
	Password           string             `json:"password"`
	SubnetIDs          []string           `json:"subnets"`
	SecurityGroupRules SecurityGroupRules `json:"security_group_rules"`
}

// SecurityGroupRules holds the ordered rule lists embedded in every entry.
type SecurityGroupRules struct {
	Ingress []Rule `json:"ingress,omitempty"`
	Egress  []Rule `json:"egress,omitempty"`
}

// Rule is one ingress or egress entry. A rule carries either literal
// CIDRBlocks or a symbolic reference: SourceSecurityGroup names a load
// balancer key, SourceSecurityGroups names EC2 keys. Egress rules only
// ever use CIDRBlocks.
type Rule struct {
	FromPort             int32    `json:"from_port"`
	ToPort               int32    `json:"to_port"`
	Protocol             string   `json:"protocol"`
	CIDRBlocks           []string `json:"cidr_blocks,omitempty"`
	SourceSecurityGroup  string   `json:"source_security_group,omitempty"`
	SourceSecurityGroups []string `json:"source_security_groups,omitempty"`
}

// Load reads and parses the configuration document at path. Loading is
// all-or-nothing: a missing file or malformed JSON aborts the run.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate ensures every entry has its required fields.
func (c *Config) Validate() error {
	for name, inst := range c.EC2Instances {
		if inst.AMI == "" {
			return fmt.Errorf("ec2 instance %q: ami is required", name)
		}
		if inst.InstanceType == "" {
			return fmt.Errorf("ec2 instance %q: instance_type is required", name)
		}
		if inst.SubnetID == "" {
			return fmt.Errorf("ec2 instance %q: subnet_id is required", name)
		}
	}

	for name, lb := range c.LoadBalancers {
		if len(lb.SubnetIDs) == 0 {
			return fmt.Errorf("load balancer %q: subnets are required", name)
		}
		if lb.Port == 0 {
			return fmt.Errorf("load balancer %q: port is required", name)
		}
		if lb.Protocol == "" {
			return fmt.Errorf("load balancer %q: protocol is required", name)
		}
	}

	for name, db := range c.RDSDatabases {
		if db.AllocatedStorage == 0 {
			return fmt.Errorf("rds database %q: allocated_storage is required", name)
		}
		if db.InstanceClass == "" {
			return fmt.Errorf("rds database %q: instance_class is required", name)
		}
		if db.DBName == "" {
			return fmt.Errorf("rds database %q: db_name is required", name)
		}
		if len(db.SubnetIDs) == 0 {
			return fmt.Errorf("rds database %q: subnets are required", name)
		}
	}

	return nil
}
