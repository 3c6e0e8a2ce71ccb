package models

// All lists every ledger table model, in dependency order.
func All() []any {
	return []any{&Account{}, &Order{}, &Bill{}, &Transaction{}}
}
