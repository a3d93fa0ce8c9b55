package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"ec2_instances": {
			"web_server": {
				"ami": "ami-0abcdef1234567890",
				"instance_type": "t3.micro",
				"subnet_id": "subnet-aaa",
				"security_group_rules": {
					"ingress": [
						{"from_port": 80, "to_port": 80, "protocol": "tcp", "source_security_group": "frontend_lb"}
					],
					"egress": [
						{"from_port": 0, "to_port": 0, "protocol": "-1", "cidr_blocks": ["0.0.0.0/0"]}
					]
				}
			}
		},
		"load_balancers": {
			"frontend_lb": {
				"subnets": ["subnet-aaa", "subnet-bbb"],
				"port": 80,
				"protocol": "HTTP",
				"target_instances": ["web_server"],
				"security_group_rules": {
					"ingress": [
						{"from_port": 80, "to_port": 80, "protocol": "tcp", "cidr_blocks": ["0.0.0.0/0"]}
					]
				}
			}
		},
		"rds_databases": {
			"main_db": {
				"allocated_storage": 20,
				"instance_class": "db.t3.micro",
				"db_name": "appdb",
				"username": "app",
				"password": "secret",
				"subnets": ["subnet-aaa", "subnet-bbb"],
				"security_group_rules": {
					"ingress": [
						{"from_port": 5432, "to_port": 5432, "protocol": "tcp", "source_security_groups": ["web_server"]}
					]
				}
			}
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.EC2Instances, 1)
	web := cfg.EC2Instances["web_server"]
	assert.Equal(t, "ami-0abcdef1234567890", web.AMI)
	assert.Equal(t, "t3.micro", web.InstanceType)
	assert.Equal(t, "subnet-aaa", web.SubnetID)
	require.Len(t, web.SecurityGroupRules.Ingress, 1)
	assert.Equal(t, "frontend_lb", web.SecurityGroupRules.Ingress[0].SourceSecurityGroup)
	require.Len(t, web.SecurityGroupRules.Egress, 1)
	assert.Equal(t, []string{"0.0.0.0/0"}, web.SecurityGroupRules.Egress[0].CIDRBlocks)

	require.Len(t, cfg.LoadBalancers, 1)
	lb := cfg.LoadBalancers["frontend_lb"]
	assert.Equal(t, []string{"web_server"}, lb.TargetInstances)
	assert.Equal(t, int32(80), lb.Port)

	require.Len(t, cfg.RDSDatabases, 1)
	db := cfg.RDSDatabases["main_db"]
	assert.Equal(t, int32(20), db.AllocatedStorage)
	require.Len(t, db.SecurityGroupRules.Ingress, 1)
	assert.Equal(t, []string{"web_server"}, db.SecurityGroupRules.Ingress[0].SourceSecurityGroups)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"ec2_instances": {`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "missing ami",
			cfg: Config{
				EC2Instances: map[string]EC2Instance{
					"web": {InstanceType: "t3.micro", SubnetID: "subnet-aaa"},
				},
			},
			wantErr: "ami is required",
		},
		{
			name: "missing lb subnets",
			cfg: Config{
				LoadBalancers: map[string]LoadBalancer{
					"lb": {Port: 80, Protocol: "HTTP"},
				},
			},
			wantErr: "subnets are required",
		},
		{
			name: "missing db name",
			cfg: Config{
				RDSDatabases: map[string]RDSDatabase{
					"db": {AllocatedStorage: 20, InstanceClass: "db.t3.micro", SubnetIDs: []string{"subnet-aaa"}},
				},
			},
			wantErr: "db_name is required",
		},
		{
			name: "empty config is valid",
			cfg:  Config{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
