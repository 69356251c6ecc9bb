package handler

import (
	"time"

	"scimgate/internal/scim/models"
)

// SCIM schema URNs carried in response envelopes.
const (
	schemaUser         = "urn:ietf:params:scim:schemas:core:2.0:User"
	schemaGroup        = "urn:ietf:params:scim:schemas:core:2.0:Group"
	schemaListResponse = "urn:ietf:params:scim:api:messages:2.0:ListResponse"
)

// Meta is the SCIM resource metadata block.
type Meta struct {
	ResourceType string    `json:"resourceType"`
	Created      time.Time `json:"created"`
	LastModified time.Time `json:"lastModified"`
}

// UserResponse is the SCIM representation of a user.
type UserResponse struct {
	Schemas     []string `json:"schemas"`
	ID          string   `json:"id"`
	ExternalID  string   `json:"externalId"`
	UserName    string   `json:"userName"`
	DisplayName string   `json:"displayName"`
	Emails      []Email  `json:"emails"`
	Active      bool     `json:"active"`
	Meta        Meta     `json:"meta"`
}

// FromUser converts a domain user to its SCIM representation.
func FromUser(u *models.User) *UserResponse {
	return &UserResponse{
		Schemas:     []string{schemaUser},
		ID:          u.ID.String(),
		ExternalID:  u.ExternalID,
		UserName:    u.UserName,
		DisplayName: u.DisplayName,
		Emails:      []Email{{Value: u.PrimaryEmail, Primary: true}},
		Active:      u.Active,
		Meta: Meta{
			ResourceType: "User",
			Created:      u.CreatedAt,
			LastModified: u.ModifiedAt,
		},
	}
}

// MemberResponse is one entry of a group's members attribute.
type MemberResponse struct {
	Value   string `json:"value"`
	Display string `json:"display"`
}

// GroupResponse is the SCIM representation of a group.
type GroupResponse struct {
	Schemas     []string         `json:"schemas"`
	ID          string           `json:"id"`
	ExternalID  string           `json:"externalId"`
	DisplayName string           `json:"displayName"`
	Members     []MemberResponse `json:"members"`
	Meta        Meta             `json:"meta"`
}

// FromGroup converts a domain group to its SCIM representation.
func FromGroup(g *models.Group) *GroupResponse {
	members := make([]MemberResponse, 0, len(g.Members))
	for _, m := range g.Members {
		members = append(members, MemberResponse{
			Value:   m.UserID.String(),
			Display: m.DisplayName,
		})
	}
	return &GroupResponse{
		Schemas:     []string{schemaGroup},
		ID:          g.ID.String(),
		ExternalID:  g.ExternalID,
		DisplayName: g.DisplayName,
		Members:     members,
		Meta: Meta{
			ResourceType: "Group",
			Created:      g.CreatedAt,
			LastModified: g.ModifiedAt,
		},
	}
}

// ListResponse is the SCIM list envelope.
type ListResponse struct {
	Schemas      []string `json:"schemas"`
	TotalResults int      `json:"totalResults"`
	StartIndex   int      `json:"startIndex"`
	ItemsPerPage int      `json:"itemsPerPage"`
	Resources    []any    `json:"Resources"`
}

// NewListResponse wraps one page of resources in the SCIM envelope.
func NewListResponse(total, startIndex int, resources []any) *ListResponse {
	return &ListResponse{
		Schemas:      []string{schemaListResponse},
		TotalResults: total,
		StartIndex:   startIndex,
		ItemsPerPage: len(resources),
		Resources:    resources,
	}
}
