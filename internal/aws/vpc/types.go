package vpc

type SubnetInfo struct {
	SubnetID     string
	Name         string
	VPCID        string
	CIDR         string
	AZ           string
	AZID         string
	AvailableIPs int
}
