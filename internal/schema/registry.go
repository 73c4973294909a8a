package schema

import "main/internal/errors"

// Contract describes a tradable instrument and its venue conventions.
type Contract struct {
	Symbol    string
	Exchange  Exchange
	PriceTick float64
	Size      int64
}

// VTSymbol returns the instrument key of the contract.
func (c Contract) VTSymbol() VTSymbol {
	return MakeVTSymbol(c.Symbol, c.Exchange)
}

// ContractRegistry stores contract definitions keyed by instrument key.
type ContractRegistry struct {
	contracts map[VTSymbol]Contract
	keys      []VTSymbol
}

// NewContractRegistry creates an empty registry.
func NewContractRegistry() *ContractRegistry {
	return &ContractRegistry{contracts: make(map[VTSymbol]Contract)}
}

// Add registers a contract. Duplicate instrument keys are rejected.
func (r *ContractRegistry) Add(c Contract) error {
	if c.Symbol == "" {
		return errors.Config("contract symbol is empty")
	}
	if c.Exchange == "" {
		return errors.Config("contract exchange is empty")
	}
	if c.PriceTick <= 0 {
		return errors.Config("contract pricetick must be > 0: %s", c.Symbol)
	}
	if c.Size <= 0 {
		return errors.Config("contract size must be > 0: %s", c.Symbol)
	}
	key := c.VTSymbol()
	if _, ok := r.contracts[key]; ok {
		return errors.Config("contract already exists: %s", key)
	}
	r.contracts[key] = c
	r.keys = append(r.keys, key)
	return nil
}

// Contract looks up a contract by instrument key.
func (r *ContractRegistry) Contract(vtSymbol VTSymbol) (Contract, bool) {
	c, ok := r.contracts[vtSymbol]
	return c, ok
}

// Keys returns instrument keys in registration order.
func (r *ContractRegistry) Keys() []VTSymbol {
	out := make([]VTSymbol, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of registered contracts.
func (r *ContractRegistry) Len() int {
	return len(r.contracts)
}
