package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"topograph/types"
)

func (a *Applier) createDBSubnetGroup(ctx context.Context, g *types.DBSubnetGroup) (created, error) {
	out, err := a.clients.RDS.CreateDBSubnetGroup(ctx, buildCreateDBSubnetGroupInput(g))
	if err != nil {
		return created{}, fmt.Errorf("failed to create DB subnet group %q: %w", g.Name, err)
	}

	return created{id: aws.ToString(out.DBSubnetGroup.DBSubnetGroupName)}, nil
}

func buildCreateDBSubnetGroupInput(g *types.DBSubnetGroup) *rds.CreateDBSubnetGroupInput {
	return &rds.CreateDBSubnetGroupInput{
		DBSubnetGroupName:        aws.String(g.Name),
		DBSubnetGroupDescription: aws.String("topograph managed subnet group " + g.Name),
		SubnetIds:                g.SubnetIDs,
	}
}

func (a *Applier) createDBInstance(ctx context.Context, db *types.DBInstance, groupID string) (created, error) {
	out, err := a.clients.RDS.CreateDBInstance(ctx, buildCreateDBInstanceInput(db, groupID))
	if err != nil {
		return created{}, fmt.Errorf("failed to create DB instance %q: %w", db.Name, err)
	}

	return created{id: aws.ToString(out.DBInstance.DBInstanceIdentifier)}, nil
}

func buildCreateDBInstanceInput(db *types.DBInstance, groupID string) *rds.CreateDBInstanceInput {
	return &rds.CreateDBInstanceInput{
		DBInstanceIdentifier: aws.String(db.Name),
		Engine:               aws.String(db.Engine),
		EngineVersion:        aws.String(db.EngineVersion),
		AllocatedStorage:     aws.Int32(db.AllocatedStorage),
		DBInstanceClass:      aws.String(db.InstanceClass),
		DBName:               aws.String(db.DBName),
		MasterUsername:       aws.String(db.Username),
		MasterUserPassword:   aws.String(db.Password),
		VpcSecurityGroupIds:  []string{groupID},
		DBSubnetGroupName:    aws.String(db.SubnetGroupName),
		PubliclyAccessible:   aws.Bool(db.PubliclyAccessible),
		Tags: []rdstypes.Tag{
			{Key: aws.String("Name"), Value: aws.String(db.Name)},
		},
	}
}
