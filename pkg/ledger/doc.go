// Package ledger implements the ERP back office: payment orders with an
// approval workflow, and customer and supplier debts with their payments.
//
// Amounts are int64 minor units (halalas for SAR). Payment orders move
// through
//
//	draft -> pending_approval -> approved -> paid
//	                          \-> rejected
//
// and may be cancelled from draft, pending_approval or approved. State
// changes are checked against the stored status so two concurrent
// approvals cannot both succeed.
package ledger
