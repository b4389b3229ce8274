// Package api defines the wire types of the TokenDemo HTTP API.
//
// # API Overview
//
// TokenDemo exposes:
//   - POST /api/tokens: tokenize a text with tiktoken
//   - GET /live: WebSocket channel that drives a server-side demo session
//   - Health, readiness and version endpoints
//
// # Tokens endpoint
//
// Request:
//
//	POST /api/tokens
//	Content-Type: application/json
//
//	{"inputText": "hello world"}
//
// Response (200):
//
//	{"tokens": [15339, 1917]}
//
// Errors use the unified envelope:
//
//	{
//	  "success": false,
//	  "error": {
//	    "code": "INVALID_REQUEST",
//	    "message": "invalid JSON body"
//	  },
//	  "timestamp": "2024-01-01T00:00:00Z"
//	}
//
// # Live channel
//
// The browser sends {"type":"input","text":"..."} on every edit and
// {"type":"submit"} on click. The server answers every state change with
// {"error":"...","words":"...","tokens":"..."}, each field an HTML fragment.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api
