package netsec

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

// EC2API defines the subset of the EC2 API we use.
type EC2API interface {
	DescribeSecurityGroups(ctx context.Context, params *awsec2.DescribeSecurityGroupsInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeSecurityGroupsOutput, error)
	DescribeNetworkInterfaces(ctx context.Context, params *awsec2.DescribeNetworkInterfacesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeNetworkInterfacesOutput, error)
	DescribeVpcPeeringConnections(ctx context.Context, params *awsec2.DescribeVpcPeeringConnectionsInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeVpcPeeringConnectionsOutput, error)
}

// Client collects EC2 security groups with their rules, attached network
// interfaces and active peering relationships.
type Client struct {
	api EC2API
}

func NewClient(api EC2API) *Client {
	return &Client{api: api}
}

// Collect drains every security group page. Interface and peering lookups
// are best-effort: a failure leaves those fields empty and the groups are
// still audited.
func (c *Client) Collect(ctx context.Context) ([]domain.Resource, error) {
	attachments := c.attachedInterfaces(ctx)
	peering := c.activePeerings(ctx)

	var resources []domain.Resource
	var nextToken *string
	for {
		out, err := c.api.DescribeSecurityGroups(ctx, &awsec2.DescribeSecurityGroupsInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeSecurityGroups: %w", err)
		}

		for _, sg := range out.SecurityGroups {
			id := aws.ToString(sg.GroupId)
			vpcID := aws.ToString(sg.VpcId)
			resources = append(resources, domain.SecurityGroup{
				ID:                 id,
				Name:               aws.ToString(sg.GroupName),
				VPCID:              vpcID,
				Description:        aws.ToString(sg.Description),
				Inbound:            convertRules(sg.IpPermissions),
				Outbound:           convertRules(sg.IpPermissionsEgress),
				AttachedInterfaces: attachments[id],
				PeeredVPCs:         peering[vpcID],
				IsDefault:          aws.ToString(sg.GroupName) == "default",
				Tags:               convertTags(sg.Tags),
			})
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	zerolog.Ctx(ctx).Debug().Int("security_groups", len(resources)).Msg("security group collection complete")
	return resources, nil
}

func convertRules(perms []ec2types.IpPermission) []domain.AccessRule {
	rules := make([]domain.AccessRule, 0, len(perms))
	for _, p := range perms {
		rule := domain.AccessRule{
			Protocol: aws.ToString(p.IpProtocol),
			FromPort: p.FromPort,
			ToPort:   p.ToPort,
		}
		for _, r := range p.IpRanges {
			rule.IPRanges = append(rule.IPRanges, domain.IPRange{
				CIDR:        aws.ToString(r.CidrIp),
				Description: aws.ToString(r.Description),
			})
		}
		for _, r := range p.Ipv6Ranges {
			rule.IPv6Ranges = append(rule.IPv6Ranges, domain.IPRange{
				CIDR:        aws.ToString(r.CidrIpv6),
				Description: aws.ToString(r.Description),
			})
		}
		for _, g := range p.UserIdGroupPairs {
			rule.PeerGroups = append(rule.PeerGroups, domain.PeerGroupRef{
				GroupID:     aws.ToString(g.GroupId),
				VPCID:       aws.ToString(g.VpcId),
				Description: aws.ToString(g.Description),
			})
		}
		rules = append(rules, rule)
	}
	return rules
}

func convertTags(tags []ec2types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return m
}

// attachedInterfaces maps security-group ID to the network interfaces using
// it, across the whole account.
func (c *Client) attachedInterfaces(ctx context.Context) map[string][]domain.AttachedInterface {
	attachments := map[string][]domain.AttachedInterface{}
	var nextToken *string
	for {
		out, err := c.api.DescribeNetworkInterfaces(ctx, &awsec2.DescribeNetworkInterfacesInput{
			NextToken: nextToken,
		})
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("network interface lookup failed")
			return attachments
		}
		for _, eni := range out.NetworkInterfaces {
			iface := domain.AttachedInterface{
				ID:          aws.ToString(eni.NetworkInterfaceId),
				Description: aws.ToString(eni.Description),
			}
			for _, g := range eni.Groups {
				id := aws.ToString(g.GroupId)
				attachments[id] = append(attachments[id], iface)
			}
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return attachments
}

// activePeerings maps VPC ID to the VPCs it is actively peered with.
func (c *Client) activePeerings(ctx context.Context) map[string][]string {
	peering := map[string][]string{}
	var nextToken *string
	for {
		out, err := c.api.DescribeVpcPeeringConnections(ctx, &awsec2.DescribeVpcPeeringConnectionsInput{
			NextToken: nextToken,
		})
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("peering connection lookup failed")
			return peering
		}
		for _, conn := range out.VpcPeeringConnections {
			if conn.Status == nil || conn.Status.Code != ec2types.VpcPeeringConnectionStateReasonCodeActive {
				continue
			}
			requester := ""
			accepter := ""
			if conn.RequesterVpcInfo != nil {
				requester = aws.ToString(conn.RequesterVpcInfo.VpcId)
			}
			if conn.AccepterVpcInfo != nil {
				accepter = aws.ToString(conn.AccepterVpcInfo.VpcId)
			}
			if requester != "" && accepter != "" {
				peering[requester] = append(peering[requester], accepter)
				peering[accepter] = append(peering[accepter], requester)
			}
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return peering
}
