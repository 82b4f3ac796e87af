package api

import (
	"fmt"

	"github.com/practicanteticPX/docuprex/internal/config"
	"github.com/practicanteticPX/docuprex/pkg/openapi"
	"github.com/practicanteticPX/docuprex/pkg/routes"
)

func uuidSchema() *openapi.Schema { return &openapi.Schema{Type: "string", Format: "uuid"} }
func timeSchema() *openapi.Schema { return &openapi.Schema{Type: "string", Format: "date-time"} }
func stringSchema() *openapi.Schema { return &openapi.Schema{Type: "string"} }
func integerSchema() *openapi.Schema { return &openapi.Schema{Type: "integer"} }
func booleanSchema() *openapi.Schema { return &openapi.Schema{Type: "boolean"} }
func arrayOf(s *openapi.Schema) *openapi.Schema {
	return &openapi.Schema{Type: "array", Items: s}
}

var enum = openapi.StringEnum

func page(item string) *openapi.Schema {
	return &openapi.Schema{
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"data":        arrayOf(openapi.SchemaRef(item)),
			"total":       integerSchema(),
			"page":        integerSchema(),
			"page_size":   integerSchema(),
			"total_pages": integerSchema(),
		},
	}
}

var statusEnum = enum("pending", "in_progress", "completed", "rejected")

var schemas = map[string]*openapi.Schema{
	"Document": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":           uuidSchema(),
			"title":        stringSchema(),
			"owner_id":     uuidSchema(),
			"owner_name":   stringSchema(),
			"status":       statusEnum,
			"filename":     stringSchema(),
			"content_type": stringSchema(),
			"size_bytes":   integerSchema(),
			"page_count":   integerSchema(),
			"storage_key":  stringSchema(),
			"uploaded_at":  timeSchema(),
			"updated_at":   timeSchema(),
		},
	},
	"DocumentPage": page("Document"),
	"Participant": {
		Type:     "object",
		Required: []string{"user_id"},
		Properties: map[string]*openapi.Schema{
			"user_id":   uuidSchema(),
			"required":  booleanSchema(),
			"role_tags": {Type: "array", Items: stringSchema(), Description: "At most 3 tags"},
		},
	},
	"AssignRequest": {
		Type:     "object",
		Required: []string{"participants"},
		Properties: map[string]*openapi.Schema{
			"participants": arrayOf(openapi.SchemaRef("Participant")),
		},
	},
	"ActRequest": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"reason":   {Type: "string", Description: "Required when rejecting"},
			"metadata": {Type: "object", Description: "Opaque signature payload"},
		},
	},
	"ReorderRequest": {
		Type:     "object",
		Required: []string{"order"},
		Properties: map[string]*openapi.Schema{
			"order": {Type: "array", Items: uuidSchema(), Description: "Every assigned user id exactly once"},
		},
	},
	"Assignment": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"user_id":     uuidSchema(),
			"name":        stringSchema(),
			"email":       stringSchema(),
			"position":    integerSchema(),
			"required":    booleanSchema(),
			"role_tags":   arrayOf(stringSchema()),
			"assigned_at": timeSchema(),
		},
	},
	"Outcome": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"user_id":  uuidSchema(),
			"state":    enum("pending", "approved", "rejected"),
			"acted_at": timeSchema(),
			"reason":   stringSchema(),
			"metadata": {Type: "object"},
		},
	},
	"SigningView": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"document_id": uuidSchema(),
			"title":       stringSchema(),
			"owner_id":    uuidSchema(),
			"status":      statusEnum,
			"assignments": arrayOf(openapi.SchemaRef("Assignment")),
			"outcomes":    arrayOf(openapi.SchemaRef("Outcome")),
			"on_turn":     arrayOf(uuidSchema()),
		},
	},
	"User": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":         uuidSchema(),
			"name":       stringSchema(),
			"email":      stringSchema(),
			"role":       enum("admin", "user"),
			"active":     booleanSchema(),
			"created_at": timeSchema(),
			"updated_at": timeSchema(),
		},
	},
	"UserPage": page("User"),
	"CreateUser": {
		Type:     "object",
		Required: []string{"name", "email"},
		Properties: map[string]*openapi.Schema{
			"id":    uuidSchema(),
			"name":  stringSchema(),
			"email": {Type: "string", Format: "email"},
			"role":  enum("admin", "user"),
		},
	},
	"ActiveRequest": {
		Type:       "object",
		Required:   []string{"active"},
		Properties: map[string]*openapi.Schema{"active": booleanSchema()},
	},
	"Notification": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":             uuidSchema(),
			"document_id":    uuidSchema(),
			"document_title": stringSchema(),
			"user_id":        uuidSchema(),
			"kind":           enum("signature_request", "document_completed", "document_rejected", "reminder"),
			"read":           booleanSchema(),
			"created_at":     timeSchema(),
			"reminded_at":    timeSchema(),
		},
	},
	"NotificationPage": page("Notification"),
	"NotificationStats": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"sent":       integerSchema(),
			"failed":     integerSchema(),
			"suppressed": integerSchema(),
			"revoked":    integerSchema(),
			"reminded":   integerSchema(),
		},
	},
}

type operation struct {
	method, path string
	op           *openapi.Operation
}

func errs(codes ...int) map[int]*openapi.Response {
	names := map[int]string{
		400: "BadRequest",
		401: "Unauthorized",
		403: "Forbidden",
		404: "NotFound",
		409: "Conflict",
		422: "UnprocessableEntity",
	}
	out := map[int]*openapi.Response{401: openapi.ResponseRef("Unauthorized")}
	for _, c := range codes {
		out[c] = openapi.ResponseRef(names[c])
	}
	return out
}

func with(responses map[int]*openapi.Response, code int, r *openapi.Response) map[int]*openapi.Response {
	responses[code] = r
	return responses
}

var (
	docID  = openapi.PathParam("id", "Document ID")
	userID = openapi.PathParam("userId", "User ID")
	anyID  = openapi.PathParam("id", "Resource ID")
	noBody = &openapi.Response{Description: "No content"}
)

func operations() []operation {
	listParams := []*openapi.Parameter{
		openapi.QueryParam("page", "integer", "Page number", false),
		openapi.QueryParam("page_size", "integer", "Results per page", false),
		openapi.QueryParam("search", "string", "Search query", false),
		openapi.QueryParam("sort", "string", "Sort fields", false),
	}

	return []operation{
		{"GET", "/documents", &openapi.Operation{
			Summary: "List documents the caller owns or signs", Tags: []string{"documents"},
			Parameters: append(listParams,
				openapi.QueryParam("status", "string", "Status filter", false),
				openapi.QueryParam("title", "string", "Title contains", false),
				openapi.QueryParam("signer", "string", "Assigned user id", false),
			),
			Responses: with(errs(), 200, openapi.ResponseJSON("Documents", "DocumentPage")),
		}},
		{"POST", "/documents", &openapi.Operation{
			Summary: "Upload a PDF; the caller becomes its owner", Tags: []string{"documents"},
			RequestBody: openapi.RequestBodyMultipart(map[string]*openapi.Schema{
				"file":  openapi.Binary(),
				"title": stringSchema(),
			}, "file"),
			Responses: with(errs(400), 201, openapi.ResponseJSON("Created", "Document")),
		}},
		{"POST", "/documents/search", &openapi.Operation{
			Summary: "Search documents with a JSON body", Tags: []string{"documents"},
			RequestBody: &openapi.RequestBody{
				Required: true,
				Content: map[string]*openapi.MediaType{
					"application/json": {Schema: &openapi.Schema{
						Type: "object",
						Properties: map[string]*openapi.Schema{
							"page":      integerSchema(),
							"page_size": integerSchema(),
							"search":    stringSchema(),
							"status":    statusEnum,
							"title":     stringSchema(),
							"filename":  stringSchema(),
							"owner_id":  uuidSchema(),
							"signer":    uuidSchema(),
						},
					}},
				},
			},
			Responses: with(errs(400), 200, openapi.ResponseJSON("Documents", "DocumentPage")),
		}},
		{"GET", "/documents/{id}", &openapi.Operation{
			Summary: "Find a document", Tags: []string{"documents"},
			Parameters: []*openapi.Parameter{docID},
			Responses:  with(errs(400, 404), 200, openapi.ResponseJSON("Document", "Document")),
		}},
		{"GET", "/documents/{id}/content", &openapi.Operation{
			Summary: "Download the PDF with its signature report", Tags: []string{"documents"},
			Parameters: []*openapi.Parameter{docID},
			Responses:  with(errs(400, 404), 200, openapi.ResponseContent("PDF", "application/pdf", openapi.Binary())),
		}},
		{"DELETE", "/documents/{id}", &openapi.Operation{
			Summary: "Delete a document (owner or admin)", Tags: []string{"documents"},
			Parameters: []*openapi.Parameter{docID},
			Responses:  with(errs(400, 403, 404), 204, noBody),
		}},
		{"GET", "/documents/{id}/signers", &openapi.Operation{
			Summary: "Signing snapshot with the on-turn set", Tags: []string{"signing"},
			Parameters: []*openapi.Parameter{docID},
			Responses:  with(errs(400, 404), 200, openapi.ResponseJSON("Snapshot", "SigningView")),
		}},
		{"POST", "/documents/{id}/signers", &openapi.Operation{
			Summary: "Assign participants", Tags: []string{"signing"},
			Parameters:  []*openapi.Parameter{docID},
			RequestBody: openapi.RequestBodyJSON("AssignRequest", true),
			Responses:   with(errs(400, 403, 404, 409, 422), 200, openapi.ResponseJSON("Snapshot", "SigningView")),
		}},
		{"DELETE", "/documents/{id}/signers/{userId}", &openapi.Operation{
			Summary: "Remove a pending participant", Tags: []string{"signing"},
			Parameters: []*openapi.Parameter{docID, userID},
			Responses:  with(errs(400, 403, 404, 409), 200, openapi.ResponseJSON("Snapshot", "SigningView")),
		}},
		{"PUT", "/documents/{id}/signers/order", &openapi.Operation{
			Summary: "Reorder participants", Tags: []string{"signing"},
			Parameters:  []*openapi.Parameter{docID},
			RequestBody: openapi.RequestBodyJSON("ReorderRequest", true),
			Responses:   with(errs(400, 403, 404, 409, 422), 200, openapi.ResponseJSON("Snapshot", "SigningView")),
		}},
		{"POST", "/documents/{id}/approve", &openapi.Operation{
			Summary: "Approve on turn", Tags: []string{"signing"},
			Parameters:  []*openapi.Parameter{docID},
			RequestBody: openapi.RequestBodyJSON("ActRequest", false),
			Responses:   with(errs(400, 403, 404, 409, 422), 200, openapi.ResponseJSON("Outcome", "Outcome")),
		}},
		{"POST", "/documents/{id}/reject", &openapi.Operation{
			Summary: "Reject with a reason", Tags: []string{"signing"},
			Parameters:  []*openapi.Parameter{docID},
			RequestBody: openapi.RequestBodyJSON("ActRequest", true),
			Responses:   with(errs(400, 403, 404, 409, 422), 200, openapi.ResponseJSON("Outcome", "Outcome")),
		}},
		{"GET", "/users", &openapi.Operation{
			Summary: "Participant directory", Tags: []string{"users"},
			Parameters: append(listParams,
				openapi.QueryParam("role", "string", "Role filter", false),
				openapi.QueryParam("active", "string", "true, false or all; defaults to true", false),
			),
			Responses: with(errs(), 200, openapi.ResponseJSON("Users", "UserPage")),
		}},
		{"POST", "/users", &openapi.Operation{
			Summary: "Register a user (admin)", Tags: []string{"users"},
			RequestBody: openapi.RequestBodyJSON("CreateUser", true),
			Responses:   with(errs(400, 403, 409, 422), 201, openapi.ResponseJSON("Created", "User")),
		}},
		{"GET", "/users/me", &openapi.Operation{
			Summary: "The caller's directory entry", Tags: []string{"users"},
			Responses: with(errs(404), 200, openapi.ResponseJSON("User", "User")),
		}},
		{"GET", "/users/{id}", &openapi.Operation{
			Summary: "Find a user", Tags: []string{"users"},
			Parameters: []*openapi.Parameter{anyID},
			Responses:  with(errs(400, 404), 200, openapi.ResponseJSON("User", "User")),
		}},
		{"PUT", "/users/{id}/active", &openapi.Operation{
			Summary: "Activate or deactivate a user (admin)", Tags: []string{"users"},
			Parameters:  []*openapi.Parameter{anyID},
			RequestBody: openapi.RequestBodyJSON("ActiveRequest", true),
			Responses:   with(errs(400, 403, 404, 422), 200, openapi.ResponseJSON("User", "User")),
		}},
		{"GET", "/notifications", &openapi.Operation{
			Summary: "The caller's notification inbox", Tags: []string{"notifications"},
			Parameters: append(listParams,
				openapi.QueryParam("kind", "string", "Kind filter", false),
				openapi.QueryParam("read", "boolean", "Read filter", false),
			),
			Responses: with(errs(), 200, openapi.ResponseJSON("Notifications", "NotificationPage")),
		}},
		{"GET", "/notifications/stats", &openapi.Operation{
			Summary: "Delivery counters (admin)", Tags: []string{"notifications"},
			Responses: with(errs(403), 200, openapi.ResponseJSON("Stats", "NotificationStats")),
		}},
		{"POST", "/notifications/{id}/read", &openapi.Operation{
			Summary: "Mark a notification read", Tags: []string{"notifications"},
			Parameters: []*openapi.Parameter{anyID},
			Responses:  with(errs(400, 404), 204, noBody),
		}},
		{"GET", "/events/documents/{id}", &openapi.Operation{
			Summary:     "Server-sent document events",
			Description: "EventSource clients may pass the token as access_token.",
			Tags:        []string{"events"},
			Parameters:  []*openapi.Parameter{docID},
			Responses:  with(errs(400), 200, openapi.ResponseContent("Event stream", "text/event-stream", stringSchema())),
		}},
	}
}

// buildSpec describes every API route.
func buildSpec(cfg *config.Config) (*openapi.Spec, error) {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)
	spec.RequireBearer("bearer", "HS256 JWT issued to the caller. EventSource clients may pass it as access_token.")
	spec.Components.AddSchemas(schemas)

	for _, o := range operations() {
		item, ok := spec.Paths[o.path]
		if !ok {
			item = &openapi.PathItem{}
			spec.Paths[o.path] = item
		}
		switch o.method {
		case "GET":
			item.Get = o.op
		case "POST":
			item.Post = o.op
		case "PUT":
			item.Put = o.op
		case "DELETE":
			item.Delete = o.op
		default:
			return nil, fmt.Errorf("unsupported method %s for %s", o.method, o.path)
		}
	}
	return spec, nil
}

func specRoutes(cfg *config.Config) (routes.Group, error) {
	spec, err := buildSpec(cfg)
	if err != nil {
		return routes.Group{}, err
	}
	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		return routes.Group{}, fmt.Errorf("marshal openapi: %w", err)
	}
	return routes.Group{
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/openapi.json", Handler: openapi.ServeSpec(data)},
		},
	}, nil
}
