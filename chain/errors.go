// kodata-dao/chain/errors.go
package chain

import "fmt"

// CallError carries the contract + entrypoint that failed so callers can log
// something more useful than a bare exec error.
type CallError struct {
	Contract   string
	Entrypoint string
	Err        error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call %s on %s: %v", e.Entrypoint, e.Contract, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func callErr(contract, entrypoint string, err error) error {
	if err == nil {
		return nil
	}
	return &CallError{Contract: contract, Entrypoint: entrypoint, Err: err}
}
