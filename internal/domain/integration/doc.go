// Package integration contains the Integration bounded context.
// This context keeps the merchant catalog synchronized with external
// marketplaces (Trendyol, Hepsiburada, Pazarama).
//
// Key concepts:
//   - Adapter: Port interface for connecting to a marketplace API
//   - Mapping: Entity reconciling a canonical entity with one marketplace's external ID
//   - SyncTask: Unit of outbound work derived from version diffs
//   - WebhookEvent: Inbound notification, deduplicated by marketplace event ID
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
