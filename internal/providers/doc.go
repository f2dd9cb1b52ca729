// Package providers groups the tool providers exposed through the service
// registry. Each provider implements the same two-method contract:
//
//   - Definition(): returns service metadata and tool definitions
//   - Execute(): runs a tool with parameters and request context
//
// The qrdir provider is the only one shipped today; it surfaces the output
// directory subsystem (validation, roots handling, configuration and the
// security audit log) as registry tools.
package providers
