// Package models holds the GORM rows behind the purchase order and inbound
// shipment aggregates and the outbox. The domain packages carry no tags;
// each model converts to and from its aggregate with ToDomain and
// FromDomain.
//
// Money columns hold integer cents and carry a _cents suffix. Unit costs,
// weights and volumes are numeric columns read through shopspring/decimal
// so that sub-cent precision survives a round trip. Status history tables
// are insert-only.
package models
