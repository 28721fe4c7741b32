package httptransport

import "expvar"

var (
	metricMarketOpsTotal    = expvar.NewInt("market_ops_total")
	metricMarketOpsRejected = expvar.NewInt("market_ops_rejected_total")
	metricMarketOpsFailed   = expvar.NewInt("market_ops_failed_total")

	metricAuthFailures = expvar.NewInt("auth_failures_total")

	metricTokensMinted = expvar.NewInt("tokens_minted_total")
	metricKeysIssued   = expvar.NewInt("api_keys_issued_total")
)
