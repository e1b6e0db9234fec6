// Package domain contains the core business entities of the screening
// application: screening tasks, searches with their matched records, and
// outbound notifications. Entities validate themselves and own their
// status transitions; persistence lives elsewhere.
package domain
