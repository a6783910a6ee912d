package iam

import "time"

type IAMRole struct {
	Name                     string
	RoleID                   string
	ARN                      string
	Path                     string
	Description              string
	CreatedAt                time.Time
	AssumeRolePolicyDocument string // decoded JSON
}

type IAMAttachedPolicy struct {
	Name string
	ARN  string
}

// RoleCheck reports whether a role can serve as an EKS cluster service role.
type RoleCheck struct {
	Role             IAMRole
	TrustsEKS        bool
	HasClusterPolicy bool
}

func (r RoleCheck) OK() bool {
	return r.TrustsEKS && r.HasClusterPolicy
}
