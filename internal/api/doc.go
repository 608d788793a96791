// Package api holds the shared record types exchanged between the adapters
// and the reconciler. Keeping them here breaks import cycles between the
// local adapter, the remote adapter, and the packages that consume both.
package api
