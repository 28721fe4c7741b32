package roles

// Registry groups the administrative identities of a market.
type Registry struct {
	Owner      string
	Masters    *MasterSet
	RateSetter string
	Escrow     *WalletLog
	Revenue    *WalletLog
}

func NewRegistry(owner string) *Registry {
	return &Registry{
		Owner:   owner,
		Masters: NewMasterSet(),
		Escrow:  NewWalletLog(),
		Revenue: NewWalletLog(),
	}
}

func (r *Registry) RequireOwner(caller string) error {
	if r.Owner == "" || caller != r.Owner {
		return ErrUnauthorized
	}
	return nil
}

func (r *Registry) RequireMaster(caller string) error {
	if !r.Masters.Contains(caller) {
		return ErrUnauthorized
	}
	return nil
}

func (r *Registry) RequireRateSetter(caller string) error {
	if r.RateSetter == "" || caller != r.RateSetter {
		return ErrUnauthorized
	}
	return nil
}

func (r *Registry) SetRateSetter(id string) error {
	if id == "" || id == r.RateSetter {
		return ErrInvalidTransition
	}
	r.RateSetter = id
	return nil
}

// SetEscrowWallet rejects the owner and the current revenue wallet.
func (r *Registry) SetEscrowWallet(id string) error {
	if id == r.Owner || id == r.Revenue.Current() {
		return ErrInvalidTransition
	}
	return r.Escrow.Set(id)
}

func (r *Registry) SetRevenueWallet(id string) error {
	if id == r.Escrow.Current() {
		return ErrInvalidTransition
	}
	return r.Revenue.Set(id)
}

func (r *Registry) Clone() *Registry {
	return &Registry{
		Owner:      r.Owner,
		Masters:    r.Masters.Clone(),
		RateSetter: r.RateSetter,
		Escrow:     r.Escrow.Clone(),
		Revenue:    r.Revenue.Clone(),
	}
}
