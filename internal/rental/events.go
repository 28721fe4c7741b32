package rental

import "time"

type EventKind string

const (
	EventLeaseTermUpdated       EventKind = "lease_term_updated"
	EventAuctionPriceSet        EventKind = "auction_price_set"
	EventLeasePriceCalculated   EventKind = "lease_price_calculated"
	EventRenterAdded            EventKind = "renter_added"
	EventRenterRemoved          EventKind = "renter_removed"
	EventSeatsChanged           EventKind = "seats_changed"
	EventCharged                EventKind = "charged"
	EventProvisioned            EventKind = "provisioned"
	EventWithdrawn              EventKind = "withdrawn"
	EventPowerUserGranted       EventKind = "power_user_granted"
	EventPowerUserRevoked       EventKind = "power_user_revoked"
	EventHistoricalGranted      EventKind = "historical_access_granted"
	EventHistoricalRevoked      EventKind = "historical_access_revoked"
	EventBeneficiaryDesignated  EventKind = "beneficiary_designated"
	EventLeptonAdded            EventKind = "lepton_added"
	EventRateUpdated            EventKind = "rate_updated"
	EventMasterAdded            EventKind = "master_added"
	EventMasterRemoved          EventKind = "master_removed"
	EventRateSetterChanged      EventKind = "rate_setter_changed"
	EventWalletChanged          EventKind = "wallet_changed"
	EventFeeChanged             EventKind = "fee_changed"
	EventParamChanged           EventKind = "param_changed"
	EventPaused                 EventKind = "paused"
	EventUnpaused               EventKind = "unpaused"
	EventImplementationUpgraded EventKind = "implementation_upgraded"
)

// Event is an observable market change. Term is the locked term index at
// the time it was emitted.
type Event struct {
	Kind       EventKind `json:"kind"`
	Term       int64     `json:"term"`
	Account    string    `json:"account,omitempty"`
	Amount     int64     `json:"amount"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Transfer moves tokens between wallets outside the market once the
// operation that requested it commits.
type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}
