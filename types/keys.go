package types

// Graph node keys. Every node is addressed as "<namespace>:<name>" so the
// namespaces of different resource kinds can never collide. Security groups
// use their flattened key ("ec2_web_server") as the name part.

func SecurityGroupKey(flatKey string) string { return "sg:" + flatKey }
func InstanceKey(name string) string         { return "instance:" + name }
func LoadBalancerKey(name string) string     { return "lb:" + name }
func TargetGroupKey(name string) string      { return "tg:" + name }
func ListenerKey(name string) string         { return "listener:" + name }
func DBSubnetGroupKey(name string) string    { return "dbsubnets:" + name }
func DBInstanceKey(name string) string       { return "db:" + name }

func AttachmentKey(targetGroup, instance string) string {
	return "attachment:" + targetGroup + ":" + instance
}
