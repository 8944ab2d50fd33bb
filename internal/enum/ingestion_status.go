package enum

type IngestionStatus string

const (
	IngestionStatusPending                 IngestionStatus = "pending"
	IngestionStatusProcessed               IngestionStatus = "processed"
	IngestionStatusUnmatched               IngestionStatus = "unmatched"
	IngestionStatusRejectedFeatureDisabled IngestionStatus = "rejected_feature_disabled"
	IngestionStatusRejectedTrialLimit      IngestionStatus = "rejected_trial_limit"
	IngestionStatusRejectedSizeExceeded    IngestionStatus = "rejected_size_exceeded"
	IngestionStatusRejectedQuotaExceeded   IngestionStatus = "rejected_quota_exceeded"
)

func (s IngestionStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition may leave this status.
func (s IngestionStatus) IsTerminal() bool {
	return s != IngestionStatusPending && s.IsValid()
}

func (s IngestionStatus) IsRejected() bool {
	switch s {
	case IngestionStatusRejectedFeatureDisabled,
		IngestionStatusRejectedTrialLimit,
		IngestionStatusRejectedSizeExceeded,
		IngestionStatusRejectedQuotaExceeded:
		return true
	}
	return false
}

func (s IngestionStatus) IsValid() bool {
	switch s {
	case IngestionStatusPending,
		IngestionStatusProcessed,
		IngestionStatusUnmatched,
		IngestionStatusRejectedFeatureDisabled,
		IngestionStatusRejectedTrialLimit,
		IngestionStatusRejectedSizeExceeded,
		IngestionStatusRejectedQuotaExceeded:
		return true
	}
	return false
}
