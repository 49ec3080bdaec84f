package types

// CloudWatch metric names and dimensions.
const (
	MetricIntroductionDelivery = "IntroductionDelivery"
	MetricCoachesProcessed     = "CoachesProcessed"
	MetricCoachesFailed        = "CoachesFailed"
	MetricRecordsCommitted     = "RecordsCommitted"

	DimResult = "Result"
	DimState  = "State"

	MetricNamespace = "RecruitFluency"
)
