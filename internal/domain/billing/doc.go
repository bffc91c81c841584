// Package billing holds the core domain model for tenant billing:
// billing projects, invoices and their usage components, prices,
// balances, and the dynamic settings that drive a billing period.
package billing
