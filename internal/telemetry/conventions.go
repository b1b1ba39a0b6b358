package telemetry

// Attribute names used on spans and metrics
const (
	AttrMCPToolName    = "mcp.tool.name"
	AttrMCPToolSuccess = "mcp.tool.result.success"
	AttrMCPToolError   = "mcp.tool.result.error"
	AttrMCPTransport   = "mcp.transport"

	AttrRequestID     = "fileconv.request.id"
	AttrOperation     = "fileconv.operation"
	AttrInputCount    = "fileconv.input.count"
	AttrOutputFormat  = "fileconv.output.format"
	AttrTier          = "fileconv.tier"
	AttrDegraded      = "fileconv.degraded"
	AttrArtifactCount = "fileconv.artifact.count"
	AttrOutcome       = "fileconv.outcome"
	AttrErrorCategory = "error.type"
	AttrToolArguments = "mcp.tool.arguments"
	AttrArgsTruncated = "mcp.tool.arguments.truncated"
)

// Span names
const (
	SpanNameToolExecute = "mcp.tool.execute"
	SpanNameConversion  = "fileconv.execute"
)

// Outcomes recorded for a conversion request
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid_options"
	OutcomePassword = "invalid_password"
	OutcomeFailed   = "failed"
)
