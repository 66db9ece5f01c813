package protocol

import (
	"encoding/json"
	"fmt"
)

// Vote is a governance ballot choice.
type Vote string

const (
	VoteFor     Vote = "For"
	VoteAgainst Vote = "Against"
	VoteAbstain Vote = "Abstain"
)

// ParseVote maps dashboard vote text case-sensitively; anything other than
// "yes" or "no" abstains.
func ParseVote(s string) Vote {
	switch s {
	case "yes":
		return VoteFor
	case "no":
		return VoteAgainst
	default:
		return VoteAbstain
	}
}

// ResourceType is one of the pooled resource categories, or a free-form name.
type ResourceType struct {
	name  string
	other bool
}

var (
	Bandwidth = ResourceType{name: "bandwidth"}
	Storage   = ResourceType{name: "storage"}
	Compute   = ResourceType{name: "compute"}
)

// OtherResource keeps name verbatim under the "other" category.
func OtherResource(name string) ResourceType {
	return ResourceType{name: name, other: true}
}

func ParseResourceType(s string) ResourceType {
	switch s {
	case "bandwidth":
		return Bandwidth
	case "storage":
		return Storage
	case "compute":
		return Compute
	default:
		return OtherResource(s)
	}
}

// String returns the name as the dashboard sent it.
func (r ResourceType) String() string { return r.name }

func (r ResourceType) IsOther() bool { return r.other }

// Known categories encode as a bare string, others as {"other": name}.
func (r ResourceType) MarshalJSON() ([]byte, error) {
	if r.other {
		return json.Marshal(map[string]string{"other": r.name})
	}
	return json.Marshal(r.name)
}

func (r *ResourceType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		switch name {
		case "bandwidth", "storage", "compute":
			*r = ResourceType{name: name}
			return nil
		}
		return fmt.Errorf("unknown resource type %q", name)
	}

	var other struct {
		Other *string `json:"other"`
	}
	if err := json.Unmarshal(data, &other); err != nil {
		return fmt.Errorf("invalid resource type: %w", err)
	}
	if other.Other == nil {
		return fmt.Errorf("invalid resource type: %s", string(data))
	}
	*r = OtherResource(*other.Other)
	return nil
}
