// Package models holds the GORM persistence models backing the billing
// tables. They carry all column tags and mappings so the domain
// entities stay free of ORM concerns; each model converts to and from
// its domain counterpart via explicit mapper methods.
package models
