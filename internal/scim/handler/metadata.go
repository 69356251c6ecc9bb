package handler

import (
	"net/http"

	"scimgate/pkg/platform/httputil"
)

// Static SCIM discovery documents. Capabilities the gateway does not
// implement are advertised as unsupported so clients fall back to full
// resource updates.

// HandleServiceProviderConfig handles GET /scim/v2/ServiceProviderConfig.
func (h *Handler) HandleServiceProviderConfig(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"schemas":          []string{"urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"},
		"documentationUri": "https://example.com/docs/scim",
		"patch":            map[string]bool{"supported": true},
		"bulk":             map[string]any{"supported": false, "maxOperations": 0, "maxPayloadSize": 0},
		"filter":           map[string]any{"supported": true, "maxResults": defaultPageSize},
		"changePassword":   map[string]bool{"supported": false},
		"sort":             map[string]bool{"supported": false},
		"etag":             map[string]bool{"supported": false},
		"authenticationSchemes": []map[string]string{
			{
				"type":        "httpbasic",
				"name":        "HTTP Basic",
				"description": "Authentication via HTTP Basic credentials",
			},
		},
	})
}

// HandleResourceTypes handles GET /scim/v2/ResourceTypes.
func (h *Handler) HandleResourceTypes(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, []map[string]any{
		{
			"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:ResourceType"},
			"id":       "User",
			"name":     "User",
			"endpoint": "/Users",
			"schema":   schemaUser,
		},
		{
			"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:ResourceType"},
			"id":       "Group",
			"name":     "Group",
			"endpoint": "/Groups",
			"schema":   schemaGroup,
		},
	})
}

// HandleSchemas handles GET /scim/v2/Schemas.
func (h *Handler) HandleSchemas(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, []map[string]any{
		{
			"id":          schemaUser,
			"name":        "User",
			"description": "User Account",
			"attributes": []map[string]any{
				{"name": "userName", "type": "string", "required": true, "uniqueness": "server"},
				{"name": "externalId", "type": "string", "required": true, "uniqueness": "server"},
				{"name": "displayName", "type": "string", "required": true},
				{"name": "emails", "type": "complex", "multiValued": true},
				{"name": "active", "type": "boolean"},
			},
		},
		{
			"id":          schemaGroup,
			"name":        "Group",
			"description": "Group",
			"attributes": []map[string]any{
				{"name": "displayName", "type": "string", "required": true, "uniqueness": "server"},
				{"name": "externalId", "type": "string", "required": true, "uniqueness": "server"},
				{"name": "members", "type": "complex", "multiValued": true},
			},
		},
	})
}
