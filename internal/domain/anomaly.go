package domain

// AnomalyKind names the check that produced an anomaly record.
type AnomalyKind string

const (
	AnomalyDuplicate          AnomalyKind = "duplicate"
	AnomalyHighAmount         AnomalyKind = "high-amount"
	AnomalyAMLCashThreshold   AnomalyKind = "aml-cash-threshold"
	AnomalyCounterpartyChange AnomalyKind = "counterparty-banking-change"
	AnomalyOffHours           AnomalyKind = "off-hours-entry"
	AnomalyStatisticalOutlier AnomalyKind = "statistical-outlier"
)

// Severity grades an anomaly. Anomalies are advisory: they annotate a
// booking outcome and never block it at this layer.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityCritical Severity = "critical"
)

// Anomaly is one advisory finding for an evaluated transaction or batch.
// Evidence holds the values that triggered the check, keyed by name.
type Anomaly struct {
	Kind     AnomalyKind
	Severity Severity
	Reason   string
	Evidence map[string]string
}
