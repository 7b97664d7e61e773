package types

// Telemetry metric names for CloudWatch.
const (
	MetricUpstreamFetch   = "UpstreamFetch"
	MetricUpstreamLatency = "UpstreamFetchLatency"
	MetricCatalogResolve  = "CatalogResolve"

	// Dimension Keys
	DimModel     = "Model"
	DimEndpoint  = "Endpoint"
	DimResult    = "Result"
	DimCacheHint = "Cache"

	MetricNamespace = "GFSFetch"
)

// Endpoint kinds on the data server.
const (
	EndpointDAS   = "das"
	EndpointDDS   = "dds"
	EndpointASCII = "ascii"
)
