package types

// Tool Protocol Types
//
// The tool server speaks plain HTTP/JSON: GET /tools/list, POST
// /tools/call, GET /health. Both internal/server and internal/client
// marshal through these types so the two sides cannot drift.

// ToolListItem is one entry of the GET /tools/list response array.
type ToolListItem struct {
	Name string `json:"name"`
}

// ToolCallRequest is the POST /tools/call request body.
type ToolCallRequest struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// ToolCallResult wraps a successful tools/call response.
type ToolCallResult struct {
	Result interface{} `json:"result"`
}

// ErrorBody is the error payload for 4xx/5xx responses.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// HealthResponse is the GET /health response body.
type HealthResponse struct {
	Status string   `json:"status"`
	Tools  []string `json:"tools"`
}
