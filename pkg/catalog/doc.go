// Package catalog flattens the tools of every connected MCP server into one
// namespaced list of function definitions and routes function calls made
// against that list back to the owning server.
package catalog
