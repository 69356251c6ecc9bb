package handler

import (
	"net/http"
	"strconv"
	"strings"

	"scimgate/internal/scim/models"
	"scimgate/internal/scim/service"
	id "scimgate/pkg/domain"
	dErrors "scimgate/pkg/domain-errors"
)

// CreateUserRequest is the HTTP request body for POST /scim/v2/Users.
type CreateUserRequest struct {
	ExternalID  string  `json:"externalId"`
	UserName    string  `json:"userName"`
	DisplayName string  `json:"displayName"`
	Emails      []Email `json:"emails"`
}

// Email is one entry of the SCIM emails attribute.
type Email struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
}

// Validate trims the identifying fields. Field-level rules live in the
// domain constructor so the rejection messages stay in one place.
func (r *CreateUserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ExternalID = strings.TrimSpace(r.ExternalID)
	r.UserName = strings.TrimSpace(r.UserName)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	return nil
}

// Input converts the request into the service input, selecting the primary
// email (or the first one supplied).
func (r *CreateUserRequest) Input() service.CreateUserInput {
	email := ""
	for _, e := range r.Emails {
		if email == "" || e.Primary {
			email = e.Value
		}
		if e.Primary {
			break
		}
	}
	return service.CreateUserInput{
		ExternalID:   r.ExternalID,
		UserName:     r.UserName,
		DisplayName:  r.DisplayName,
		PrimaryEmail: email,
	}
}

// UpdateUserRequest is the HTTP request body for PATCH /scim/v2/Users/{id}.
// Absent fields are left unchanged.
type UpdateUserRequest struct {
	DisplayName  *string `json:"displayName"`
	PrimaryEmail *string `json:"primaryEmail"`
	Active       *bool   `json:"active"`
}

func (r *UpdateUserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}

// Patch converts the request into the domain patch.
func (r *UpdateUserRequest) Patch() models.UserPatch {
	return models.UserPatch{
		DisplayName:  r.DisplayName,
		PrimaryEmail: r.PrimaryEmail,
		Active:       r.Active,
	}
}

// CreateGroupRequest is the HTTP request body for POST /scim/v2/Groups.
type CreateGroupRequest struct {
	ExternalID  string `json:"externalId"`
	DisplayName string `json:"displayName"`
}

func (r *CreateGroupRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ExternalID = strings.TrimSpace(r.ExternalID)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	return nil
}

func (r *CreateGroupRequest) Input() service.CreateGroupInput {
	return service.CreateGroupInput{
		ExternalID:  r.ExternalID,
		DisplayName: r.DisplayName,
	}
}

// UpdateGroupRequest is the HTTP request body for PATCH /scim/v2/Groups/{id}.
type UpdateGroupRequest struct {
	DisplayName *string `json:"displayName"`
}

func (r *UpdateGroupRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}

// AddMemberRequest is the HTTP request body for POST
// /scim/v2/Groups/{id}/members.
type AddMemberRequest struct {
	UserID string `json:"userId"`

	parsedUserID id.UserID
}

func (r *AddMemberRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	userID, err := id.ParseUserID(strings.TrimSpace(r.UserID))
	if err != nil {
		return err
	}
	r.parsedUserID = userID
	return nil
}

// ParsedUserID returns the validated user ID.
func (r *AddMemberRequest) ParsedUserID() id.UserID {
	return r.parsedUserID
}

// pagination carries the SCIM list paging parameters. startIndex is 1-based
// per the protocol.
type pagination struct {
	startIndex int
	count      int
}

func (p pagination) skip() int {
	return p.startIndex - 1
}

const defaultPageSize = 100

func parsePagination(r *http.Request) (pagination, error) {
	page := pagination{startIndex: 1, count: defaultPageSize}

	if raw := r.URL.Query().Get("startIndex"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return pagination{}, dErrors.New(dErrors.CodeBadRequest, "startIndex must be a positive integer")
		}
		page.startIndex = v
	}
	// count=0 is a valid request for the total alone and yields an empty
	// page.
	if raw := r.URL.Query().Get("count"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return pagination{}, dErrors.New(dErrors.CodeBadRequest, "count must be a non-negative integer")
		}
		page.count = v
	}
	return page, nil
}

// parseFilter extracts the substring from a filter expression of the form
// `<attribute> co "value"`. Anything else is treated as a raw substring;
// richer filter grammar is intentionally unsupported.
func parseFilter(raw, attribute string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	prefix := attribute + " co "
	if strings.HasPrefix(raw, prefix) {
		return strings.Trim(strings.TrimPrefix(raw, prefix), `"`)
	}
	return raw
}
