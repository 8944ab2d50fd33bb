package enum

type PlanTier string

const (
	PlanTierFree  PlanTier = "free"
	PlanTierTrial PlanTier = "trial"
	PlanTierPaid  PlanTier = "paid"
)

func (t PlanTier) String() string {
	return string(t)
}
