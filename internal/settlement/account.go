package settlement

import "errors"

// Account is the platform's custodial identity: the address every transfer
// settles against and the opaque credential handle used to sign. It is
// constructed once at process start from externally supplied secrets and
// passed in explicitly; there is no package-level account.
type Account struct {
	address    string
	credential string
}

var ErrMissingAccount = errors.New("custodial account address is required")

func NewAccount(address, credential string) (Account, error) {
	if address == "" {
		return Account{}, ErrMissingAccount
	}
	return Account{address: address, credential: credential}, nil
}

func (a Account) Address() string { return a.address }
