package observability

const (
	MUsecaseRequests     MetricKey = "usecase_requests_total"
	MUsecaseDuration     MetricKey = "usecase_duration_seconds"
	MHTTPRequests        MetricKey = "http_requests_total"
	MHTTPRequestDuration MetricKey = "http_request_duration_seconds"
	MCheckoutAborts      MetricKey = "checkout_aborts_total"
	MStockReleased       MetricKey = "stock_released_units_total"
)
