package observability

const (
	DefaultServiceName  = "luna"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4318"
	DefaultMetricsPath  = "/metrics"
)
