package domain

type Plan struct {
	ID         int64
	ObjectID   string
	Name       string
	Status     string
	Version    int64
	CreatedAt  int64
	BusinessID string
}

// PlanVariation belongs to a Plan through PlanID, which holds the plan's
// ObjectID and not its numeric ID.
type PlanVariation struct {
	ID                     int64
	ObjectID               string
	PlanID                 string
	Name                   string
	Type                   string
	Cadence                string
	Amount                 int64
	Credit                 int64
	CreditChargeAmount     int64
	GiftCredit             int64
	GiftCreditChargeAmount int64
	TaxPercentage          float64
	Status                 string
	Version                int64
	Description            string
	BusinessID             string
	CreatedAt              int64
}

type SubscriptionData struct {
	Plans      []Plan
	Variations []PlanVariation
}

func (d SubscriptionData) VariationsForPlan(plan Plan) []PlanVariation {
	result := make([]PlanVariation, 0)
	for _, variation := range d.Variations {
		if variation.PlanID == plan.ObjectID {
			result = append(result, variation)
		}
	}
	return result
}

type NewPlan struct {
	Name       string `json:"name" validate:"required"`
	BusinessID string `json:"business_id" validate:"required"`
}

type NewPlanVariation struct {
	PlanID                 string  `json:"plan_id" validate:"required"`
	Name                   string  `json:"name" validate:"required"`
	Cadence                string  `json:"cadence" validate:"required,oneof=DAILY WEEKLY EVERY_TWO_WEEKS THIRTY_DAYS SIXTY_DAYS NINETY_DAYS MONTHLY EVERY_TWO_MONTHS QUARTERLY EVERY_FOUR_MONTHS EVERY_SIX_MONTHS ANNUAL EVERY_TWO_YEARS"`
	Amount                 int64   `json:"amount" validate:"gte=0"`
	Type                   string  `json:"type" validate:"required,oneof=STATIC RELATIVE"`
	BusinessID             string  `json:"business_id" validate:"required"`
	Credit                 int64   `json:"credit" validate:"gte=0"`
	CreditChargeAmount     int64   `json:"credit_charge_amount" validate:"gte=0"`
	Description            string  `json:"description"`
	TaxPercentage          float64 `json:"tax_percentage" validate:"gte=0,lte=100"`
	GiftCredit             int64   `json:"gift_credit" validate:"gte=0"`
	GiftCreditChargeAmount int64   `json:"gift_credit_charge_amount" validate:"gte=0"`
}
